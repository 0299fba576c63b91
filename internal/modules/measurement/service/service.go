package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloudpico-climate/internal/metrics"
	"cloudpico-climate/internal/modules/measurement/repository"
	"cloudpico-climate/internal/modules/measurement/types"
)

// Order decides whether accepted measurements reach live listeners before
// or after they are stored.
type Order int

const (
	PublishFirst Order = iota
	PersistFirst
)

// ParseOrder maps a config value to an Order.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "publish-first":
		return PublishFirst, true
	case "persist-first":
		return PersistFirst, true
	default:
		return PublishFirst, false
	}
}

func (o Order) String() string {
	if o == PersistFirst {
		return "persist-first"
	}
	return "publish-first"
}

// Publisher receives every accepted measurement.
type Publisher interface {
	Publish(types.Measurement)
}

// Ingestor validates submissions, stores them and fans them out.
type Ingestor struct {
	repo   repository.MeasurementRepository
	pub    Publisher
	order  Order
	logger *slog.Logger
}

func NewIngestor(repo repository.MeasurementRepository, pub Publisher, order Order, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{repo: repo, pub: pub, order: order, logger: logger}
}

// Submit runs one submission through validation, parsing, publishing and
// persistence. Returned errors match types.ErrInvalidData,
// types.ErrMalformedDate or types.ErrStore.
func (i *Ingestor) Submit(ctx context.Context, sub types.Submission) error {
	m, err := sub.ToMeasurement()
	if err != nil {
		i.logger.Warn("submission rejected",
			"date", sub.Date,
			"humidity", sub.Humidity,
			"error", err,
		)
		metrics.IngestTotal.WithLabelValues(rejectResult(err)).Inc()
		return err
	}

	if i.order == PublishFirst {
		i.pub.Publish(m)
	}

	if err := i.repo.Upsert(ctx, m); err != nil {
		i.logger.Error("failed to store measurement",
			"time", m.Time.Format(types.DateLayout),
			"order", i.order.String(),
			"error", err,
		)
		metrics.IngestTotal.WithLabelValues("store_error").Inc()
		return err
	}

	if i.order == PersistFirst {
		i.pub.Publish(m)
	}

	i.logger.Debug("measurement accepted",
		"time", m.Time.Format(types.DateLayout),
		"temperature", m.Temperature,
		"humidity", m.Humidity,
	)
	metrics.IngestTotal.WithLabelValues("ok").Inc()
	return nil
}

func rejectResult(err error) string {
	switch {
	case errors.Is(err, types.ErrInvalidData):
		return "invalid"
	case errors.Is(err, types.ErrMalformedDate):
		return "malformed_date"
	default:
		return "error"
	}
}

// Querier answers read-only questions against the store.
type Querier struct {
	repo repository.MeasurementRepository
}

func NewQuerier(repo repository.MeasurementRepository) *Querier {
	return &Querier{repo: repo}
}

// SingleDay returns the measurement recorded at day, or types.ErrNotFound.
func (q *Querier) SingleDay(ctx context.Context, day time.Time) (types.Measurement, error) {
	ms, err := q.repo.RangeQuery(ctx, day, day)
	if err != nil {
		return types.Measurement{}, err
	}
	if len(ms) == 0 {
		return types.Measurement{}, types.ErrNotFound
	}
	return ms[0], nil
}

// Range returns measurements with start <= time <= end in ascending order.
// No match yields an empty slice.
func (q *Querier) Range(ctx context.Context, start, end time.Time) ([]types.Measurement, error) {
	return q.repo.RangeQuery(ctx, start, end)
}
