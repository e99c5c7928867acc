package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	pkghttp "BandPilot/pkg/http"
	xutil "BandPilot/pkg/util"
)

// FieldCloseName carries the provider's label for the index value.
const FieldCloseName = "close_name"

// Alternative fetches the daily crypto Fear and Greed index from alternative.me.
type Alternative struct {
	url    string
	client *pkghttp.Client
	guard  *guard
	now    func() time.Time
}

var _ domrepo.Fetcher = (*Alternative)(nil)

func NewAlternative(endpoint string, o Options) *Alternative {
	o = o.withDefaults()
	return &Alternative{url: endpoint, client: o.Client, guard: newGuard("alternative", o), now: o.Now}
}

func (a *Alternative) Name() string { return "alternative" }

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

// Fetch asks for enough days to reach back to start. The API returns newest first.
func (a *Alternative) Fetch(ctx context.Context, start time.Time) (*models.Series, error) {
	limit := 0
	if !start.IsZero() {
		limit = models.DaysBetween(start, a.now()) + 1
		if limit < 1 {
			return nil, nil
		}
	}

	var resp fngResponse
	err := a.guard.do(ctx, func() error {
		query := url.Values{"limit": {strconv.Itoa(limit)}, "format": {"json"}}
		if err := a.client.GetJSON(ctx, a.url, query, &resp); err != nil {
			return err
		}
		if resp.Metadata.Error != nil && *resp.Metadata.Error != "" {
			return fmt.Errorf("api error: %s", *resp.Metadata.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := models.NewSeries([]string{models.FieldClose}, []string{FieldCloseName})
	for i := len(resp.Data) - 1; i >= 0; i-- {
		d := resp.Data[i]
		date, ok := xutil.ParseDate(d.Timestamp)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(d.Value, 64)
		if err != nil || v <= 0 {
			continue
		}
		var name *string
		if d.ValueClassification != "" {
			label := d.ValueClassification
			name = &label
		}
		s.Add(date, map[string]float64{models.FieldClose: v}, map[string]*string{FieldCloseName: name})
	}
	return keepFrom(s, start), nil
}
