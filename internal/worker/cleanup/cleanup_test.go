package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// ItemPurger インターフェースに対するモック実装
type mockPurger struct {
	called  bool
	cutoff  time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeleteRemovedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.called = true
	m.cutoff = cutoff
	return m.deleted, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_SetsDefaultRetention(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf))

	if job.Retention != 24*time.Hour {
		t.Errorf("Retention = %v, want 24h", job.Retention)
	}
}

func TestCleanupJob_Run_UsesRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{deleted: 5}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	before := time.Now()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	after := time.Now()

	if !mock.called {
		t.Fatal("DeleteRemovedBefore が呼び出されなかった")
	}

	// cutoffは実行時刻から保持期間を差し引いた時刻であること
	wantLow := before.Add(-24 * time.Hour)
	wantHigh := after.Add(-24 * time.Hour)
	if mock.cutoff.Before(wantLow) || mock.cutoff.After(wantHigh) {
		t.Errorf("cutoff = %v, want between %v and %v", mock.cutoff, wantLow, wantHigh)
	}
}

func TestCleanupJob_Run_CustomRetention(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	job.Retention = 1 * time.Hour

	before := time.Now()
	_ = job.Run(context.Background())

	wantLow := before.Add(-1*time.Hour - time.Second)
	if mock.cutoff.Before(wantLow) {
		t.Errorf("cutoff = %v, want after %v", mock.cutoff, wantLow)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{deleted: 42}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok {
			if count == float64(42) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{err: errors.New("connection lost")}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("削除失敗時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{deleted: 0}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	// 削除対象がなくてもエラーにならない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
}

func TestCleanupJob_Start_StopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockPurger{}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回実行を待ってからキャンセルする
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストキャンセル後にStartが終了しなかった")
	}

	if !mock.called {
		t.Error("起動直後に1回実行されるべき")
	}
}
