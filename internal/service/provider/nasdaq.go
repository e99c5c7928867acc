package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	pkghttp "BandPilot/pkg/http"
)

// Nasdaq fetches the daily BTC market price (BCHAIN/MKPRU) from Nasdaq Data Link.
type Nasdaq struct {
	url    string
	apiKey string
	client *pkghttp.Client
	guard  *guard
	now    func() time.Time
}

var _ domrepo.Fetcher = (*Nasdaq)(nil)

func NewNasdaq(endpoint, apiKey string, o Options) *Nasdaq {
	o = o.withDefaults()
	return &Nasdaq{url: endpoint, apiKey: apiKey, client: o.Client, guard: newGuard("nasdaq", o), now: o.Now}
}

func (n *Nasdaq) Name() string { return "nasdaq" }

type mkpruResponse struct {
	DatasetData struct {
		Data [][]json.RawMessage `json:"data"`
	} `json:"dataset_data"`
}

func (n *Nasdaq) Fetch(ctx context.Context, start time.Time) (*models.Series, error) {
	if !start.IsZero() && !models.Day(start).Before(models.Day(n.now())) {
		return nil, nil
	}
	params := url.Values{"order": {"asc"}}
	if !start.IsZero() {
		params.Set("start_date", start.Format(models.DateLayout))
	}
	if n.apiKey != "" {
		params.Set("api_key", n.apiKey)
	}

	var resp mkpruResponse
	err := n.guard.do(ctx, func() error {
		return n.client.GetJSON(ctx, n.url, params, &resp)
	})
	if err != nil {
		return nil, err
	}

	s := models.NewSeries([]string{models.FieldClose}, nil)
	for _, row := range resp.DatasetData.Data {
		if len(row) < 2 {
			continue
		}
		var ds string
		var v float64
		if json.Unmarshal(row[0], &ds) != nil || json.Unmarshal(row[1], &v) != nil {
			continue
		}
		date, err := time.Parse(models.DateLayout, ds)
		if err != nil || v <= 0 {
			continue
		}
		s.AddClose(date, v)
	}
	return keepFrom(s, start), nil
}
