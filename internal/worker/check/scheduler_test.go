package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// mockChecker はItemCheckerServiceのテスト用モック。
type mockChecker struct {
	checkFunc func(ctx context.Context, item *model.TrackedItem) error
}

func (m *mockChecker) Check(ctx context.Context, item *model.TrackedItem) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, item)
	}
	return nil
}

func dueItems(n int) []*model.TrackedItem {
	items := make([]*model.TrackedItem, 0, n)
	for i := 0; i < n; i++ {
		item := testItem()
		item.ID = item.ID + "-" + string(rune('a'+i))
		items = append(items, item)
	}
	return items
}

// 期限到来アイテムが全件チェックされることを検証
func TestScheduler_RunOnce_ChecksAllDueItems(t *testing.T) {
	items := dueItems(5)
	itemRepo := &mockItemRepo{
		listDueFunc: func(_ context.Context) ([]*model.TrackedItem, error) {
			return items, nil
		},
	}

	var mu sync.Mutex
	checked := make(map[string]int)
	checker := &mockChecker{
		checkFunc: func(_ context.Context, item *model.TrackedItem) error {
			mu.Lock()
			defer mu.Unlock()
			checked[item.ID]++
			return nil
		},
	}

	scheduler := NewScheduler(itemRepo, checker, slog.New(slog.NewTextHandler(io.Discard, nil)), 3)
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(checked) != 5 {
		t.Errorf("checked items = %d, want 5", len(checked))
	}
	for id, count := range checked {
		if count != 1 {
			t.Errorf("item %s checked %d times, want 1", id, count)
		}
	}
}

// 最大並列数を超えて同時実行されないことを検証
func TestScheduler_RunOnce_RespectsConcurrencyLimit(t *testing.T) {
	const maxConcurrency = 3
	items := dueItems(10)
	itemRepo := &mockItemRepo{
		listDueFunc: func(_ context.Context) ([]*model.TrackedItem, error) {
			return items, nil
		},
	}

	var current, peak int64
	checker := &mockChecker{
		checkFunc: func(_ context.Context, _ *model.TrackedItem) error {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		},
	}

	scheduler := NewScheduler(itemRepo, checker, slog.New(slog.NewTextHandler(io.Discard, nil)), maxConcurrency)
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if p := atomic.LoadInt64(&peak); p > maxConcurrency {
		t.Errorf("peak concurrency = %d, want <= %d", p, maxConcurrency)
	}
}

// 一部アイテムの失敗が他のアイテムに影響しないことを検証
func TestScheduler_RunOnce_FailureIsolation(t *testing.T) {
	items := dueItems(4)
	itemRepo := &mockItemRepo{
		listDueFunc: func(_ context.Context) ([]*model.TrackedItem, error) {
			return items, nil
		},
	}

	var mu sync.Mutex
	var succeeded []string
	checker := &mockChecker{
		checkFunc: func(_ context.Context, item *model.TrackedItem) error {
			if item.ID == items[1].ID {
				return errors.New("fetch failed")
			}
			mu.Lock()
			defer mu.Unlock()
			succeeded = append(succeeded, item.ID)
			return nil
		},
	}

	scheduler := NewScheduler(itemRepo, checker, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error even when a check fails, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(succeeded) != 3 {
		t.Errorf("succeeded items = %d, want 3", len(succeeded))
	}
}

// 実行中のアイテムが重複チェックされないことを検証
func TestScheduler_RunOnce_SkipsInFlightItems(t *testing.T) {
	item := testItem()
	itemRepo := &mockItemRepo{
		listDueFunc: func(_ context.Context) ([]*model.TrackedItem, error) {
			return []*model.TrackedItem{item}, nil
		},
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	checker := &mockChecker{
		checkFunc: func(_ context.Context, _ *model.TrackedItem) error {
			if atomic.AddInt64(&calls, 1) == 1 {
				close(started)
				<-release
			}
			return nil
		},
	}

	scheduler := NewScheduler(itemRepo, checker, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)

	done := make(chan struct{})
	go func() {
		scheduler.RunOnce(context.Background())
		close(done)
	}()

	<-started
	// 1回目のチェックがブロック中に同じアイテムで2回目のサイクルを回す
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("check calls = %d, want 1 (in-flight item must be skipped)", got)
	}

	close(release)
	<-done

	// 完了後は再びチェック可能になる
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("check calls = %d, want 2 after first check completed", got)
	}
}

// 期限到来アイテムがない場合に何もせず正常終了することを検証
func TestScheduler_RunOnce_NoDueItems(t *testing.T) {
	itemRepo := &mockItemRepo{}
	var calls int64
	checker := &mockChecker{
		checkFunc: func(_ context.Context, _ *model.TrackedItem) error {
			atomic.AddInt64(&calls, 1)
			return nil
		},
	}

	scheduler := NewScheduler(itemRepo, checker, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Errorf("check calls = %d, want 0", atomic.LoadInt64(&calls))
	}
}

// 一覧取得の失敗がエラーとして返ることを検証
func TestScheduler_RunOnce_ListError(t *testing.T) {
	itemRepo := &mockItemRepo{
		listDueFunc: func(_ context.Context) ([]*model.TrackedItem, error) {
			return nil, errors.New("connection lost")
		},
	}
	scheduler := NewScheduler(itemRepo, &mockChecker{}, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	if err := scheduler.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
