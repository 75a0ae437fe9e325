package sqlstore

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/domain/target"
)

func TestTargetRepo_GetOrCreateFromURL_InsertsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewLazyTargetRepo(s)

	t1, err := repo.GetOrCreateFromURL(ctx, "https://api.example.com/v1/users")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL: %v", err)
	}
	if t1.Host != "api.example.com" || t1.Protocol != "https" || t1.Port != nil {
		t.Fatalf("unexpected target: %+v", t1)
	}
	if t1.Status != target.StatusActive || t1.RiskLevel != target.RiskLow {
		t.Fatalf("unexpected defaults: status=%s risk=%s", t1.Status, t1.RiskLevel)
	}

	t2, err := repo.GetOrCreateFromURL(ctx, "https://api.example.com/v2/orders")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL (2nd): %v", err)
	}
	if t2.ID != t1.ID {
		t.Fatalf("expected same target id on repeat endpoint, got %s vs %s", t2.ID, t1.ID)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE host = 'api.example.com'`).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row inserted, got %d", count)
	}
}

func TestTargetRepo_GetOrCreateFromURL_BumpsActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewLazyTargetRepo(s)

	first, err := repo.GetOrCreateFromURL(ctx, "https://svc.internal/")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL: %v", err)
	}
	second, err := repo.GetOrCreateFromURL(ctx, "https://svc.internal/ping")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL (2nd): %v", err)
	}
	if second.LastActivity.Before(first.DiscoveryDate) {
		t.Fatalf("last_activity %v should not precede discovery_date %v", second.LastActivity, first.DiscoveryDate)
	}
}

func TestTargetRepo_UpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewLazyTargetRepo(s)

	tgt, err := repo.GetOrCreateFromURL(ctx, "https://blocked.example.com/")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL: %v", err)
	}
	risk := target.RiskHigh
	if err := repo.UpdateStatus(ctx, tgt.ID, target.StatusBlocked, &risk); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := repo.GetByID(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != target.StatusBlocked || got.RiskLevel != target.RiskHigh {
		t.Fatalf("unexpected post-update state: %+v", got)
	}
}

func TestTargetRepo_Search_FiltersByStatusAndSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewLazyTargetRepo(s)

	a, _ := repo.GetOrCreateFromURL(ctx, "https://alpha.example.com/")
	_, _ = repo.GetOrCreateFromURL(ctx, "https://beta.example.com/")
	risk := target.RiskCritical
	if err := repo.UpdateStatus(ctx, a.ID, target.StatusBlocked, &risk); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	results, err := repo.Search(ctx, target.SearchParams{Status: target.StatusBlocked, HostOrTitle: "alpha", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Host != "alpha.example.com" {
		t.Fatalf("unexpected search result: %+v", results)
	}
}
