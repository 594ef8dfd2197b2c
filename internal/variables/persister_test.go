package variables

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/iedsim/internal/infrastructure/database"
	"github.com/nerrad567/iedsim/migrations"
)

func sampleVars() map[string]any {
	return map[string]any{
		"feeder_name": "F-12",
		"trip_delay":  map[string]any{"value": 0.25, "unit": "s"},
		"enabled":     true,
		"setpoints":   []any{1.0, 2.5},
	}
}

func TestFilePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vars.json")
	p := NewFilePersister(path)

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() on missing file = %v, want empty", got)
	}

	want := sampleVars()
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"enabled\": true") {
		t.Errorf("file not indented with two spaces:\n%s", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path)) //nolint:errcheck // checked via len
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the variables file", len(entries))
	}
}

func TestFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	s := NewStore(NewFilePersister(path))
	s.Load(context.Background())
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after corrupt load", s.Len())
	}
}

func TestFilePersister_SaveFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "vars.json")
	s := NewStore(NewFilePersister(path))

	if err := s.Set(context.Background(), "x", 1.0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if s.Stats().SaveFailures != 1 {
		t.Errorf("SaveFailures = %d, want 1", s.Stats().SaveFailures)
	}
}

func TestNewFilePersister_DefaultPath(t *testing.T) {
	if got := NewFilePersister("").Path(); got != DefaultFile {
		t.Errorf("Path() = %q, want %q", got, DefaultFile)
	}
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	p := NewSQLitePersister(db.DB)
	want := sampleVars()
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}

	// A second save replaces the table.
	if err := p.Save(ctx, map[string]any{"only": "one"}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"only": "one"}) {
		t.Errorf("Load() after replace = %v", got)
	}
}

func TestSQLitePersister_WithStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	first := NewStore(NewSQLitePersister(db.DB))
	if err := first.Set(ctx, "mode", "local"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	second := NewStore(NewSQLitePersister(db.DB))
	second.Load(ctx)
	if got, ok := second.Get("mode"); !ok || got != "local" {
		t.Errorf("reloaded Get(mode) = %v, %v; want local, true", got, ok)
	}
}

func TestSQLitePersister_MissingTable(t *testing.T) {
	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := NewSQLitePersister(db.DB).Load(context.Background()); err == nil {
		t.Error("Load() without migrations should fail")
	}
}

func TestRedisPersister_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup

	p := NewRedisPersister(client, "")
	if p.key != DefaultRedisKey {
		t.Errorf("key = %q, want %q", p.key, DefaultRedisKey)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err == nil {
		t.Fatal("Ping() to closed port should fail")
	}

	s := NewStore(p)
	s.Load(ctx)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if err := s.Set(ctx, "x", 1.0); err != nil {
		t.Fatalf("Set() error = %v, want nil (best effort)", err)
	}
	if s.Stats().SaveFailures != 1 {
		t.Errorf("SaveFailures = %d, want 1", s.Stats().SaveFailures)
	}
}
