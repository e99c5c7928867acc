package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"BandPilot/internal/domain/models"
	"BandPilot/internal/service/metrics"
	"BandPilot/internal/service/ratelimit"
	"BandPilot/internal/usecase"
	xhttp "BandPilot/pkg/http"
	applogger "BandPilot/pkg/logger"
)

// BandsService answers band queries.
type BandsService interface {
	SentimentAt(ctx context.Context, date time.Time) (*usecase.SentimentBand, error)
	PriceAt(ctx context.Context, date time.Time, price float64, live bool) (*usecase.PriceBand, error)
	CurveAt(ctx context.Context, date time.Time) (*usecase.CurveBoundaries, error)
	Summary(ctx context.Context, date time.Time) (*usecase.BandsSummary, error)
}

type BandQuery struct {
	Date  string  `query:"date"`
	Price float64 `query:"price" validate:"gte=0"`
	Live  bool    `query:"live"`
}

// Per client: bursts of 20 requests, 5 per second sustained.
const (
	clientBurst = 20
	clientRate  = 5
)

type BandsHandler struct {
	svc BandsService
	rl  *ratelimit.Limiter
	l   *applogger.Logger
}

func NewBandsHandler(svc BandsService, l *applogger.Logger) *BandsHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &BandsHandler{svc: svc, rl: ratelimit.New(), l: l}
}

func (h *BandsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/bands")
	g.GET("", h.Summary)
	g.GET("/sentiment", h.Sentiment)
	g.GET("/price", h.Price)
	g.GET("/price/curve", h.Curve)
}

func (h *BandsHandler) Summary(c echo.Context) error {
	return h.serve(c, "summary", func(ctx context.Context, q *BandQuery, date time.Time) (any, error) {
		return h.svc.Summary(ctx, date)
	})
}

func (h *BandsHandler) Sentiment(c echo.Context) error {
	return h.serve(c, "sentiment", func(ctx context.Context, q *BandQuery, date time.Time) (any, error) {
		return h.svc.SentimentAt(ctx, date)
	})
}

func (h *BandsHandler) Price(c echo.Context) error {
	return h.serve(c, "price", func(ctx context.Context, q *BandQuery, date time.Time) (any, error) {
		return h.svc.PriceAt(ctx, date, q.Price, q.Live)
	})
}

func (h *BandsHandler) Curve(c echo.Context) error {
	return h.serve(c, "curve", func(ctx context.Context, q *BandQuery, date time.Time) (any, error) {
		return h.svc.CurveAt(ctx, date)
	})
}

type queryFunc func(ctx context.Context, q *BandQuery, date time.Time) (any, error)

func (h *BandsHandler) serve(c echo.Context, endpoint string, fn queryFunc) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":"+endpoint, clientBurst, clientRate) {
		h.l.Warn("bands rate limited", applogger.String("endpoint", endpoint), applogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	q := &BandQuery{}
	if verr := xhttp.BindQuery(c, q); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	date, aerr := xhttp.ParseDateParam("date", q.Date)
	if aerr != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, aerr)
	}

	res, err := fn(c.Request().Context(), q, date)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.l.Error("bands query failed", applogger.String("endpoint", endpoint), applogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

// appError maps domain errors to HTTP statuses.
func appError(err error) *xhttp.AppError {
	var e *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrNotFound):
		e = xhttp.NotFoundError("date not in series")
	case errors.Is(err, models.ErrNotAvailable), errors.Is(err, models.ErrInvalidConfiguration):
		e = xhttp.BadRequestError("value not available")
	case errors.Is(err, models.ErrNoDataAvailable),
		errors.Is(err, models.ErrFetchFailed),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, context.DeadlineExceeded):
		e = xhttp.UnavailableError("series not available")
	default:
		e = xhttp.InternalError("band computation failed")
	}
	return e.WithError(err)
}
