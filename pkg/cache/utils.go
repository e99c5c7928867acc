package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// LockKey names the lock guarding key.
func LockKey(key string) string {
	return GenerateKey("lock", strings.ToLower(key))
}
