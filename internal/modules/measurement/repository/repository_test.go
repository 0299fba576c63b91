package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"cloudpico-climate/internal/migrate"
	"cloudpico-climate/internal/modules/measurement/types"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "climate.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
	})
	if err := migrate.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewRepository(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	if repo == nil {
		t.Fatal("NewRepository returned nil")
	}
}

func TestRangeQuery_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.RangeQuery(context.Background(), day(2025, 1, 1), day(2025, 1, 31))
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if got == nil {
		t.Fatal("RangeQuery returned nil slice, want empty non-nil")
	}
	if len(got) != 0 {
		t.Fatalf("RangeQuery: got %d measurements, want 0", len(got))
	}
}

func TestUpsert_RoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	m := types.Measurement{Time: day(2021, 1, 1), Temperature: 3.3, Humidity: 2.1}
	if err := repo.Upsert(ctx, m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.RangeQuery(ctx, m.Time, m.Time)
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d measurements, want 1", len(got))
	}
	if !got[0].Time.Equal(m.Time) || got[0].Temperature != 3.3 || got[0].Humidity != 2.1 {
		t.Errorf("got %+v, want %+v", got[0], m)
	}
	if got[0].Time.Location() != time.UTC {
		t.Errorf("time location = %v, want UTC", got[0].Time.Location())
	}
}

func TestUpsert_OverwritesSameTime(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ts := day(2022, 6, 15)
	if err := repo.Upsert(ctx, types.Measurement{Time: ts, Temperature: 10, Humidity: 20}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, types.Measurement{Time: ts, Temperature: -4.5, Humidity: 99}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM measurements`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("row count = %d, want 1", n)
	}

	got, err := repo.RangeQuery(ctx, ts, ts)
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != 1 || got[0].Temperature != -4.5 || got[0].Humidity != 99 {
		t.Errorf("got %+v, want second submission's values", got)
	}
}

func TestRangeQuery_InclusiveAndOrdered(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	// inserted out of order on purpose
	for _, d := range []int{3, 1, 5, 2, 4} {
		m := types.Measurement{Time: day(2023, 1, d), Temperature: float64(d), Humidity: float64(d * 10)}
		if err := repo.Upsert(ctx, m); err != nil {
			t.Fatalf("Upsert day %d: %v", d, err)
		}
	}

	tests := []struct {
		name     string
		from, to time.Time
		wantDays []int
	}{
		{name: "first two", from: day(2023, 1, 1), to: day(2023, 1, 2), wantDays: []int{1, 2}},
		{name: "middle three", from: day(2023, 1, 2), to: day(2023, 1, 4), wantDays: []int{2, 3, 4}},
		{name: "all", from: day(2022, 12, 1), to: day(2023, 2, 1), wantDays: []int{1, 2, 3, 4, 5}},
		{name: "single day", from: day(2023, 1, 5), to: day(2023, 1, 5), wantDays: []int{5}},
		{name: "empty window", from: day(2024, 1, 1), to: day(2024, 1, 31), wantDays: nil},
		{name: "inverted bounds", from: day(2023, 1, 4), to: day(2023, 1, 2), wantDays: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.RangeQuery(ctx, tt.from, tt.to)
			if err != nil {
				t.Fatalf("RangeQuery: %v", err)
			}
			if len(got) != len(tt.wantDays) {
				t.Fatalf("got %d measurements, want %d: %+v", len(got), len(tt.wantDays), got)
			}
			for i, d := range tt.wantDays {
				if !got[i].Time.Equal(day(2023, 1, d)) || got[i].Temperature != float64(d) {
					t.Errorf("got[%d] = %+v, want day %d", i, got[i], d)
				}
			}
		})
	}
}

func TestUpsert_NormalizesZone(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	// same instant expressed in another zone must hit the same key
	zone := time.FixedZone("plus2", 2*60*60)
	if err := repo.Upsert(ctx, types.Measurement{Time: day(2023, 3, 1), Temperature: 1, Humidity: 1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, types.Measurement{Time: day(2023, 3, 1).In(zone), Temperature: 2, Humidity: 2}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.RangeQuery(ctx, day(2023, 3, 1), day(2023, 3, 1))
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != 1 || got[0].Temperature != 2 {
		t.Errorf("got %+v, want one record with temperature 2", got)
	}
}

func TestUpsert_ConcurrentDistinctTimes(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	const n = 30
	base := day(2020, 1, 1)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := types.Measurement{Time: base.AddDate(0, 0, i), Temperature: float64(i), Humidity: float64(i)}
			if err := repo.Upsert(ctx, m); err != nil {
				errs <- fmt.Errorf("upsert %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	got, err := repo.RangeQuery(ctx, base, base.AddDate(0, 0, n-1))
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d measurements, want %d", len(got), n)
	}
	for i, m := range got {
		if !m.Time.Equal(base.AddDate(0, 0, i)) || m.Temperature != float64(i) {
			t.Errorf("got[%d] = %+v", i, m)
		}
	}
}

func TestUpsert_ConcurrentSameTime(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	const n = 20
	ts := day(2020, 5, 5)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// temperature and humidity always agree so a mixed record is detectable
			if err := repo.Upsert(ctx, types.Measurement{Time: ts, Temperature: float64(i), Humidity: float64(i)}); err != nil {
				t.Errorf("upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM measurements`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
	got, err := repo.RangeQuery(ctx, ts, ts)
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != 1 || got[0].Temperature != got[0].Humidity {
		t.Errorf("got %+v, want a single consistent record", got)
	}
}

func newMockRepo(t *testing.T) (MeasurementRepository, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })
	return NewRepository(sqlx.NewDb(raw, "postgres")), mock
}

func TestUpsert_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)
	cause := errors.New("connection reset by peer")
	mock.ExpectExec(`(?s)INSERT INTO measurements .* ON CONFLICT \(time\) DO UPDATE`).
		WithArgs(day(2021, 1, 1), 1.5, 50.0).
		WillReturnError(cause)

	err := repo.Upsert(context.Background(), types.Measurement{Time: day(2021, 1, 1), Temperature: 1.5, Humidity: 50})
	if !errors.Is(err, types.ErrStore) {
		t.Fatalf("Upsert error = %v, want ErrStore", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Upsert error = %v, want to wrap cause", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRangeQuery_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT time, temperature, humidity\s+FROM measurements\s+WHERE time >= \$1 AND time <= \$2\s+ORDER BY time ASC`).
		WillReturnError(errors.New("too many connections"))

	got, err := repo.RangeQuery(context.Background(), day(2021, 1, 1), day(2021, 1, 2))
	if !errors.Is(err, types.ErrStore) {
		t.Fatalf("RangeQuery error = %v, want ErrStore", err)
	}
	if got != nil {
		t.Errorf("RangeQuery result = %v, want nil on error", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRangeQuery_PostgresPlaceholders(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"time", "temperature", "humidity"}).
		AddRow(day(2021, 1, 1), 3.3, 2.1).
		AddRow(day(2021, 1, 2), 4.3, 3.1)
	mock.ExpectQuery(`WHERE time >= \$1 AND time <= \$2`).
		WithArgs(day(2021, 1, 1), day(2021, 1, 2)).
		WillReturnRows(rows)

	got, err := repo.RangeQuery(context.Background(), day(2021, 1, 1), day(2021, 1, 2))
	if err != nil {
		t.Fatalf("RangeQuery: %v", err)
	}
	if len(got) != 2 || got[1].Temperature != 4.3 {
		t.Errorf("got %+v", got)
	}
}
