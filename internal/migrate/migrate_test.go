package migrate

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "migrate.db")+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func TestRun_CreatesSchemaAndIsIdempotent(t *testing.T) {
	db := openSQLite(t)

	if err := Run(db); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var versions []string
	if err := db.Select(&versions, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		t.Fatalf("select versions: %v", err)
	}
	if len(versions) != 1 || versions[0] != "0001" {
		t.Fatalf("versions = %v, want [0001]", versions)
	}

	if _, err := db.Exec(`INSERT INTO measurements (time, temperature, humidity) VALUES ('2021-01-01 00:00:00+00:00', 1.5, 50)`); err != nil {
		t.Fatalf("insert into measurements: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO measurements (time, temperature, humidity) VALUES ('2021-01-01 00:00:00+00:00', 2.5, 60)`); err == nil {
		t.Fatal("duplicate time accepted; want unique constraint violation")
	}
	if _, err := db.Exec(`INSERT INTO measurements (time, temperature, humidity) VALUES ('2021-01-02 00:00:00+00:00', 2.5, 101)`); err == nil {
		t.Fatal("humidity 101 accepted; want check constraint violation")
	}
}

func TestDialect(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "sqlite3", want: "sqlite"},
		{driver: "postgres", want: "postgres"},
		{driver: "pgx", want: "postgres"},
		{driver: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := Dialect(tt.driver)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Dialect(%q) err = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Dialect(%q) = %q, want %q", tt.driver, got, tt.want)
			}
		})
	}
}

func TestPendingMigrations_BothDialectsMatch(t *testing.T) {
	sqlite, err := pendingMigrations("sqlite", nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	postgres, err := pendingMigrations("postgres", nil)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if len(sqlite) == 0 || len(sqlite) != len(postgres) {
		t.Fatalf("sqlite has %d migrations, postgres %d; want equal and > 0", len(sqlite), len(postgres))
	}
	for i := range sqlite {
		if sqlite[i].version != postgres[i].version || sqlite[i].name != postgres[i].name {
			t.Errorf("migration %d differs: %s_%s vs %s_%s", i, sqlite[i].version, sqlite[i].name, postgres[i].version, postgres[i].name)
		}
	}

	skipped, err := pendingMigrations("sqlite", map[string]bool{"0001": true})
	if err != nil {
		t.Fatalf("sqlite with applied: %v", err)
	}
	for _, m := range skipped {
		if m.version == "0001" {
			t.Error("applied migration 0001 listed as pending")
		}
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{in: "0001_measurements.sql", wantVersion: "0001", wantName: "measurements", wantOK: true},
		{in: "0010_add_index.sql", wantVersion: "0010", wantName: "add_index", wantOK: true},
		{in: "1_short.sql", wantOK: false},
		{in: "0001_measurements.txt", wantOK: false},
		{in: "README.md", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.in)
			if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v; want %q, %q, %v", tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
