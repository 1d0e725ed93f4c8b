package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"bn-scalp-bot/internal/ledger"
)

// kvStore is an in-memory ledger.Store; only the kv surface is functional,
// which is all the operator touches.
type kvStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newKVStore() *kvStore {
	return &kvStore{data: make(map[string]string)}
}

func (s *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *kvStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *kvStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *kvStore) InsertPending(ctx context.Context, order ledger.PendingOrder) error { return nil }
func (s *kvStore) ListPending(ctx context.Context) ([]ledger.PendingOrder, error)     { return nil, nil }
func (s *kvStore) DeletePending(ctx context.Context, orderID int64) error             { return nil }
func (s *kvStore) UpsertActive(ctx context.Context, pos ledger.ActivePosition) error  { return nil }
func (s *kvStore) ListActive(ctx context.Context) ([]ledger.ActivePosition, error)    { return nil, nil }
func (s *kvStore) DeleteActive(ctx context.Context, orderID int64) error              { return nil }
func (s *kvStore) CloseActive(ctx context.Context, pos ledger.ClosedPosition) error   { return nil }
func (s *kvStore) AppendClosed(ctx context.Context, pos ledger.ClosedPosition) error  { return nil }
func (s *kvStore) ListClosed(ctx context.Context, limit int) ([]ledger.ClosedPosition, error) {
	return nil, nil
}
func (s *kvStore) TotalPnL(ctx context.Context) (float64, error) { return 0, nil }
func (s *kvStore) DailyStats(ctx context.Context, day time.Time) (ledger.DayStats, error) {
	return ledger.DayStats{}, nil
}
func (s *kvStore) Close() error { return nil }

func TestParseOperatorCommand(t *testing.T) {
	cmd, args, ok := parseOperatorCommand("/status now")
	if !ok {
		t.Fatalf("expected ok")
	}
	if cmd != "status" {
		t.Fatalf("expected status, got %s", cmd)
	}
	if len(args) != 1 || args[0] != "now" {
		t.Fatalf("unexpected args: %v", args)
	}
	if _, _, ok := parseOperatorCommand("not a command"); ok {
		t.Fatalf("expected non-slash text to be ignored")
	}
	if _, _, ok := parseOperatorCommand("   "); ok {
		t.Fatalf("expected blank text to be ignored")
	}
}

func TestOperatorPauseResumeAudit(t *testing.T) {
	store := newKVStore()
	app := &App{store: store}
	meta := operatorMeta{UserID: 1, ChatID: 2, Raw: "/pause"}

	resp, err := app.handleOperatorCommand(context.Background(), "pause", meta)
	if err != nil {
		t.Fatalf("pause error: %v", err)
	}
	if resp != "trading paused" {
		t.Fatalf("unexpected pause response: %s", resp)
	}
	if !app.isPaused() {
		t.Fatalf("expected paused")
	}

	resp, err = app.handleOperatorCommand(context.Background(), "pause", meta)
	if err != nil {
		t.Fatalf("second pause error: %v", err)
	}
	if resp != "trading already paused" {
		t.Fatalf("unexpected repeat pause response: %s", resp)
	}

	meta.Raw = "/resume"
	resp, err = app.handleOperatorCommand(context.Background(), "resume", meta)
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if resp != "trading resumed" {
		t.Fatalf("unexpected resume response: %s", resp)
	}
	if app.isPaused() {
		t.Fatalf("expected resumed")
	}
	found := false
	for key := range store.data {
		if strings.HasPrefix(key, "ops:audit:") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected audit entry")
	}
}

func TestOperatorHelpForUnknownCommand(t *testing.T) {
	app := &App{store: newKVStore()}
	resp, err := app.handleOperatorCommand(context.Background(), "nonsense", operatorMeta{})
	if err != nil {
		t.Fatalf("unknown command error: %v", err)
	}
	if !strings.Contains(resp, "/pause") {
		t.Fatalf("expected help text, got %s", resp)
	}
}

func TestOperatorOffsetRoundTrip(t *testing.T) {
	store := newKVStore()
	app := &App{store: store}
	ctx := context.Background()

	if got := app.loadOperatorOffset(ctx); got != 0 {
		t.Fatalf("expected zero offset on empty store, got %d", got)
	}
	app.saveOperatorOffset(ctx, 42)
	if got := app.loadOperatorOffset(ctx); got != 42 {
		t.Fatalf("expected offset 42, got %d", got)
	}

	if err := store.Set(ctx, operatorOffsetKey, "garbage"); err != nil {
		t.Fatalf("seed garbage: %v", err)
	}
	if got := app.loadOperatorOffset(ctx); got != 0 {
		t.Fatalf("expected garbage offset to read as zero, got %d", got)
	}
}
