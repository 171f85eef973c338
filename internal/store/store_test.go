package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/nettrail/linkwatch/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestEnableInterfaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	ids := []string{"00:00:00:00:00:00:00:01:1", "00:00:00:00:00:00:00:02:1"}
	if err := s.EnableInterfaces(ctx, ids); err != nil {
		t.Fatalf("EnableInterfaces: %v", err)
	}

	got, err := s.EnabledInterfaces(ctx)
	if err != nil {
		t.Fatalf("EnabledInterfaces: %v", err)
	}
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[1] {
		t.Fatalf("EnabledInterfaces() = %v, want %v", got, ids)
	}

	// Re-enabling is an upsert, not a duplicate.
	if err := s.EnableInterfaces(ctx, ids[:1]); err != nil {
		t.Fatalf("EnableInterfaces repeat: %v", err)
	}
	got, err = s.EnabledInterfaces(ctx)
	if err != nil {
		t.Fatalf("EnabledInterfaces: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("EnabledInterfaces() after re-enable = %v", got)
	}
}

func TestDisableInterfaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id := "00:00:00:00:00:00:00:01:1"
	if err := s.EnableInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("EnableInterfaces: %v", err)
	}
	if err := s.DisableInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("DisableInterfaces: %v", err)
	}

	enabled, ok, err := s.IsEnabled(ctx, id)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if !ok || enabled {
		t.Fatalf("IsEnabled(%s) = (%v, %v), want (false, true)", id, enabled, ok)
	}

	got, err := s.EnabledInterfaces(ctx)
	if err != nil {
		t.Fatalf("EnabledInterfaces: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("EnabledInterfaces() = %v, want empty", got)
	}
}

// Disabling an interface the store has never seen must not create a row:
// such an interface stays under the default enablement policy.
func TestDisableUnknownInterface(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id := "00:00:00:00:00:00:00:09:1"
	if err := s.DisableInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("DisableInterfaces: %v", err)
	}

	_, ok, err := s.IsEnabled(ctx, id)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if ok {
		t.Fatal("disable of an unknown interface created a row")
	}
}

func TestDeleteInterfaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id := "00:00:00:00:00:00:00:01:1"
	if err := s.EnableInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("EnableInterfaces: %v", err)
	}
	if err := s.DeleteInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("DeleteInterfaces: %v", err)
	}

	_, ok, err := s.IsEnabled(ctx, id)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if ok {
		t.Fatal("row survived deletion")
	}

	// Deleting an absent row is not an error.
	if err := s.DeleteInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("DeleteInterfaces repeat: %v", err)
	}
}

func TestIsEnabledUnknown(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	enabled, ok, err := s.IsEnabled(context.Background(), "nope")
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if enabled || ok {
		t.Fatalf("IsEnabled(unknown) = (%v, %v), want (false, false)", enabled, ok)
	}
}

// TestPersistence round-trips through an on-disk database file.
func TestPersistence(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "state", "linkwatch.db")
	ctx := context.Background()
	id := "00:00:00:00:00:00:00:01:1"

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.EnableInterfaces(ctx, []string{id}); err != nil {
		t.Fatalf("EnableInterfaces: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer reopened.Close()

	enabled, ok, err := reopened.IsEnabled(ctx, id)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if !ok || !enabled {
		t.Fatalf("IsEnabled after reopen = (%v, %v), want (true, true)", enabled, ok)
	}
}
