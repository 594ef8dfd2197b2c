package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_first.up.sql":    {Data: []byte("CREATE TABLE first (id INTEGER PRIMARY KEY);")},
		"20260101_000000_first.down.sql":  {Data: []byte("DROP TABLE first;")},
		"20260102_000000_second.up.sql":   {Data: []byte("CREATE TABLE second (id INTEGER PRIMARY KEY);")},
		"20260102_000000_second.down.sql": {Data: []byte("DROP TABLE second;")},
		"README.md":                       {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, name := range []string{"first", "second"} {
		if !tableExists(t, db, name) {
			t.Errorf("table %s not created", name)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d; want 2, 0", len(applied), len(pending))
	}

	// A second run is a no-op.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "second") {
		t.Error("table second still exists after MigrateDown")
	}
	if !tableExists(t, db, "first") {
		t.Error("table first removed by MigrateDown")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "second" {
		t.Errorf("pending = %+v, want [second]", pending)
	}
}

func TestMigrate_FailureStops(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260102_000000_broken.up.sql": {Data: []byte("CREATE TABLE ;")},
	}

	if err := db.Migrate(context.Background(), fsys); err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration was rolled back")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		up      bool
		ok      bool
	}{
		{"20260301_120000_custom_variables.up.sql", "20260301_120000", "custom_variables", true, true},
		{"20260301_120000_custom_variables.down.sql", "20260301_120000", "custom_variables", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "", true, true},
		{"notes.sql", "", "", false, false},
		{"20260301.up.sql", "", "", false, false},
		{"20260301_120000_x.up.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.in)
			if ok != tt.ok || version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v, %v; want %q, %q, %v, %v",
					tt.in, version, name, up, ok, tt.version, tt.name, tt.up, tt.ok)
			}
		})
	}
}
