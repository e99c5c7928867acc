package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	icache "BandPilot/internal/service/cache"
	"BandPilot/internal/services/bands"
	applogger "BandPilot/pkg/logger"
)

// Cache keys of the two working series.
const (
	KeySentiment = "fng_1d_alternative"
	KeyPrice     = "btcusdt_1d_nasdaq"
)

type BandsConfig struct {
	// Start is the requested start of both series when nothing is cached.
	Start        time.Time
	TTL          time.Duration
	Timeout      time.Duration
	CurveOptions []bands.CurveOption
}

type sentimentModel struct {
	series     *models.Series
	classifier *bands.ThresholdClassifier
}

// BandsUseCase builds the sentiment and price classifiers on demand and answers band queries.
type BandsUseCase struct {
	builder   *SeriesBuilder
	sentiment domrepo.Fetcher
	price     domrepo.Fetcher
	spot      domrepo.SpotPriceSource
	cfg       BandsConfig
	l         *applogger.Logger

	sentimentCache *icache.TTLCache[*sentimentModel]
	curveCache     *icache.TTLCache[*bands.CurveFitClassifier]
}

// NewBandsUseCase wires the builder with both fetchers. spot may be nil.
func NewBandsUseCase(builder *SeriesBuilder, sentiment, price domrepo.Fetcher, spot domrepo.SpotPriceSource, cfg BandsConfig, l *applogger.Logger) *BandsUseCase {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &BandsUseCase{
		builder:        builder,
		sentiment:      sentiment,
		price:          price,
		spot:           spot,
		cfg:            cfg,
		l:              l,
		sentimentCache: icache.NewTTLCache[*sentimentModel](),
		curveCache:     icache.NewTTLCache[*bands.CurveFitClassifier](),
	}
}

// OnCacheLookup reports classifier cache hits and misses to fn.
func (uc *BandsUseCase) OnCacheLookup(fn func(classifier, result string)) {
	uc.sentimentCache.OnLookup = fn
	uc.curveCache.OnLookup = fn
}

// Invalidate drops both cached classifiers.
func (uc *BandsUseCase) Invalidate() {
	uc.sentimentCache.Delete(KeySentiment)
	uc.curveCache.Delete(KeyPrice)
}

func (uc *BandsUseCase) sentimentModel(ctx context.Context) (*sentimentModel, error) {
	return uc.sentimentCache.GetOrLoad(KeySentiment, uc.cfg.TTL, func() (*sentimentModel, error) {
		ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
		s, err := uc.builder.Build(ctx, BuildRequest{Key: KeySentiment, Fetcher: uc.sentiment, RequestedStart: uc.cfg.Start})
		if err != nil {
			return nil, err
		}
		cls, err := bands.NewThresholdClassifier(s)
		if err != nil {
			return nil, err
		}
		return &sentimentModel{series: s, classifier: cls}, nil
	})
}

// Curve returns the fitted price classifier, building it when the cached one expired.
func (uc *BandsUseCase) Curve(ctx context.Context) (*bands.CurveFitClassifier, error) {
	return uc.curveCache.GetOrLoad(KeyPrice, uc.cfg.TTL, func() (*bands.CurveFitClassifier, error) {
		ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
		s, err := uc.builder.Build(ctx, BuildRequest{Key: KeyPrice, Fetcher: uc.price, RequestedStart: uc.cfg.Start})
		if err != nil {
			return nil, err
		}
		started := time.Now()
		cls, err := bands.NewCurveFitClassifier(ctx, s, uc.cfg.CurveOptions...)
		if err != nil {
			return nil, err
		}
		curve := cls.Curve()
		uc.l.Info("price curve fitted",
			applogger.Float64("a", curve.A),
			applogger.Float64("b", curve.B),
			applogger.Float64("c", curve.C),
			applogger.Int("rows", s.Len()),
			applogger.Duration("duration_ms", time.Since(started)),
		)
		return cls, nil
	})
}

// Sentiment returns the fear and greed classifier.
func (uc *BandsUseCase) Sentiment(ctx context.Context) (*bands.ThresholdClassifier, error) {
	m, err := uc.sentimentModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.classifier, nil
}

// Warm builds both classifiers concurrently.
func (uc *BandsUseCase) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := uc.sentimentModel(ctx)
		return err
	})
	g.Go(func() error {
		_, err := uc.Curve(ctx)
		return err
	})
	return g.Wait()
}

type SentimentBand struct {
	Date  time.Time          `json:"date"`
	Value float64            `json:"value"`
	Label *string            `json:"label,omitempty"`
	Band  models.BandDetails `json:"band"`
}

// SentimentAt classifies the index value at date, or at the latest date when date is zero.
func (uc *BandsUseCase) SentimentAt(ctx context.Context, date time.Time) (*SentimentBand, error) {
	m, err := uc.sentimentModel(ctx)
	if err != nil {
		return nil, err
	}
	v, d, err := m.classifier.ValueAt(date)
	if err != nil {
		return nil, err
	}
	band, err := m.classifier.ClassifyDetails(v)
	if err != nil {
		return nil, err
	}
	res := &SentimentBand{Date: d, Value: v, Band: band}
	if p, ok := m.series.At(d); ok {
		res.Label = p.Text[fieldCloseName]
	}
	return res, nil
}

const fieldCloseName = "close_name"

// Price sources reported by PriceAt.
const (
	PriceFromSeries = "series"
	PriceFromQuery  = "query"
	PriceFromLive   = "live"
)

type PriceBand struct {
	Date   time.Time          `json:"date"`
	Price  float64            `json:"price"`
	Source string             `json:"source"`
	Band   models.BandDetails `json:"band"`
}

// PriceAt classifies price at date. A zero price means the series close, unless live
// asks for the current spot price.
func (uc *BandsUseCase) PriceAt(ctx context.Context, date time.Time, price float64, live bool) (*PriceBand, error) {
	cls, err := uc.Curve(ctx)
	if err != nil {
		return nil, err
	}
	_, d, err := cls.BoundariesAt(date)
	if err != nil {
		return nil, err
	}

	src := PriceFromQuery
	switch {
	case live:
		if uc.spot == nil {
			return nil, fmt.Errorf("live price: %w", models.ErrNotAvailable)
		}
		if price, err = uc.spot.LatestPrice(ctx); err != nil {
			return nil, err
		}
		src = PriceFromLive
	case price <= 0:
		price = cls.CloseAt(d)
		src = PriceFromSeries
	}

	band, err := cls.BandAt(d, price)
	if err != nil {
		return nil, err
	}
	return &PriceBand{Date: d, Price: price, Source: src, Band: band}, nil
}

type CurveBoundaries struct {
	Date       time.Time       `json:"date"`
	Multiplier float64         `json:"multiplier"`
	Boundaries map[int]float64 `json:"boundaries"`
}

// CurveAt returns the boundary prices keyed by curve offset at date.
func (uc *BandsUseCase) CurveAt(ctx context.Context, date time.Time) (*CurveBoundaries, error) {
	cls, err := uc.Curve(ctx)
	if err != nil {
		return nil, err
	}
	b, d, err := cls.BoundariesAt(date)
	if err != nil {
		return nil, err
	}
	return &CurveBoundaries{Date: d, Multiplier: cls.Curve().Multiplier, Boundaries: b}, nil
}

type BandsSummary struct {
	Sentiment *SentimentBand    `json:"sentiment,omitempty"`
	Price     *PriceBand        `json:"price,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Summary classifies both series at date concurrently. A failing side is reported in Errors.
func (uc *BandsUseCase) Summary(ctx context.Context, date time.Time) (*BandsSummary, error) {
	res := &BandsSummary{}
	var sentErr, priceErr error
	var g errgroup.Group
	g.Go(func() error {
		res.Sentiment, sentErr = uc.SentimentAt(ctx, date)
		return nil
	})
	g.Go(func() error {
		res.Price, priceErr = uc.PriceAt(ctx, date, 0, false)
		return nil
	})
	_ = g.Wait()

	if sentErr != nil && priceErr != nil {
		return nil, sentErr
	}
	errs := map[string]string{}
	if sentErr != nil {
		errs["sentiment"] = sentErr.Error()
	}
	if priceErr != nil {
		errs["price"] = priceErr.Error()
	}
	if len(errs) > 0 {
		res.Errors = errs
	}
	return res, nil
}
