package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{Host: "ch", Port: 9000, Database: "bandpilot", User: "default", Password: "p@ss", DialTimeout: 5 * time.Second}
	assert.Equal(t, "clickhouse://default:p%40ss@ch:9000/bandpilot?dial_timeout=5s", buildDSN(cfg))

	cfg.UseHTTP = true
	cfg.Port = 8123
	cfg.DialTimeout = 0
	assert.Equal(t, "http://default:p%40ss@ch:8123/bandpilot", buildDSN(cfg))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.EqualError(t, err, "host is required")
}
