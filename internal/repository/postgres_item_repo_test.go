package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// PostgresItemRepoはItemRepositoryインターフェースを満たすことを検証
func TestPostgresItemRepo_ImplementsInterface(t *testing.T) {
	var _ ItemRepository = (*PostgresItemRepo)(nil)
}

// PostgresStateRepoはStateRepositoryインターフェースを満たすことを検証
func TestPostgresStateRepo_ImplementsInterface(t *testing.T) {
	var _ StateRepository = (*PostgresStateRepo)(nil)
}

// NewPostgresItemRepoが正しく初期化されることを検証
func TestNewPostgresItemRepo_Initializes(t *testing.T) {
	repo := NewPostgresItemRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// TrackedItemモデルのフィールドが正しく構築されることを検証
func TestPostgresItemRepo_ItemModel_Fields(t *testing.T) {
	now := time.Now()
	item := &model.TrackedItem{
		ID:                   "item-id-1",
		OwnerID:              "user-1",
		SiteKey:              "example_store",
		URL:                  "https://store.example.com/products/123",
		ProductName:          "限定フィギュア",
		CheckIntervalSeconds: 300,
		Status:               model.ItemStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if item.ID != "item-id-1" {
		t.Errorf("item.ID = %q, want %q", item.ID, "item-id-1")
	}
	if item.Status != model.ItemStatusActive {
		t.Errorf("item.Status = %q, want %q", item.Status, model.ItemStatusActive)
	}
	if item.LastCheckedAt != nil {
		t.Error("last_checked_at should be nil by default")
	}
}

// nullTimeがnilと非nilを正しく変換することを検証
func TestNullTime_Conversion(t *testing.T) {
	if got := nullTime(nil); got.Valid {
		t.Errorf("nullTime(nil) = %v, want invalid", got)
	}

	now := time.Now()
	got := nullTime(&now)
	want := sql.NullTime{Time: now, Valid: true}
	if got != want {
		t.Errorf("nullTime(&now) = %v, want %v", got, want)
	}
}
