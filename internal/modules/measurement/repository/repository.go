package repository

import (
	"context"
	_ "embed"
	"time"

	"github.com/jmoiron/sqlx"

	"cloudpico-climate/internal/metrics"
	"cloudpico-climate/internal/modules/measurement/types"
)

//go:embed sql/upsert-measurement.sql
var upsertMeasurementSQL string

//go:embed sql/get-measurements-range.sql
var getMeasurementsRangeSQL string

// MeasurementRepository is the durable store keyed by measurement time.
type MeasurementRepository interface {
	// Upsert inserts m or overwrites temperature and humidity of the record
	// with the same time.
	Upsert(ctx context.Context, m types.Measurement) error
	// RangeQuery returns measurements with start <= time <= end, ascending.
	RangeQuery(ctx context.Context, start, end time.Time) ([]types.Measurement, error)
}

type repositoryImpl struct {
	db        *sqlx.DB
	rangeStmt string
}

func NewRepository(db *sqlx.DB) MeasurementRepository {
	return &repositoryImpl{
		db:        db,
		rangeStmt: db.Rebind(getMeasurementsRangeSQL),
	}
}

func (r *repositoryImpl) Upsert(ctx context.Context, m types.Measurement) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("upsert", start, err) }()

	m.Time = m.Time.UTC()
	if _, err = r.db.NamedExecContext(ctx, upsertMeasurementSQL, m); err != nil {
		return &types.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

func (r *repositoryImpl) RangeQuery(ctx context.Context, from, to time.Time) (out []types.Measurement, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("range", start, err) }()

	out = []types.Measurement{}
	if err = r.db.SelectContext(ctx, &out, r.rangeStmt, from.UTC(), to.UTC()); err != nil {
		return nil, &types.StoreError{Op: "range", Err: err}
	}
	for i := range out {
		out[i].Time = out[i].Time.UTC()
	}
	return out, nil
}
