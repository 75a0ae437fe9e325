package service

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/targetcontext"
)

func seedTarget(t *testing.T, ctx context.Context, s *sqlstore.Store) string {
	t.Helper()
	targets := sqlstore.NewLazyTargetRepo(s)
	tgt, err := targets.GetOrCreateFromURL(ctx, "https://victim.example.com/")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL: %v", err)
	}
	return tgt.ID
}

func TestContextVersionService_CreateVersionChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targetID := seedTarget(t, ctx, s)
	svc := NewContextVersionService(s)

	v1, err := svc.CreateVersion(ctx, CreateVersionParams{
		TargetID: targetID, UserContext: "found login form", CreatedBy: "user", ChangeType: targetcontext.ChangeUserEdit,
	})
	if err != nil {
		t.Fatalf("CreateVersion v1: %v", err)
	}
	if v1.Version != 1 || v1.ParentVersionID != nil {
		t.Fatalf("expected version 1 with no parent, got %+v", v1)
	}

	v2, err := svc.CreateVersion(ctx, CreateVersionParams{
		TargetID: targetID, AgentContext: "tried sqli, blocked by waf", CreatedBy: "agent", ChangeType: targetcontext.ChangeAgentUpdate,
	})
	if err != nil {
		t.Fatalf("CreateVersion v2: %v", err)
	}
	if v2.Version != 2 || v2.ParentVersionID == nil || *v2.ParentVersionID != v1.ID {
		t.Fatalf("expected version 2 parented on v1, got %+v", v2)
	}

	current, err := svc.GetCurrent(ctx, targetID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("expected current context to be v2, got %+v", current)
	}
}

func TestContextVersionService_RollbackPreservesAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targetID := seedTarget(t, ctx, s)
	svc := NewContextVersionService(s)

	v1, err := svc.CreateVersion(ctx, CreateVersionParams{TargetID: targetID, UserContext: "original", CreatedBy: "user", ChangeType: targetcontext.ChangeUserEdit})
	if err != nil {
		t.Fatalf("CreateVersion v1: %v", err)
	}
	if _, err := svc.CreateVersion(ctx, CreateVersionParams{TargetID: targetID, UserContext: "edited", CreatedBy: "user", ChangeType: targetcontext.ChangeUserEdit}); err != nil {
		t.Fatalf("CreateVersion v2: %v", err)
	}

	v3, err := svc.RollbackToVersion(ctx, targetID, v1.ID)
	if err != nil {
		t.Fatalf("RollbackToVersion: %v", err)
	}
	if v3.Version != 3 {
		t.Fatalf("expected rollback to create version 3, got %d", v3.Version)
	}
	if v3.UserContext != "original" {
		t.Fatalf("expected rollback to copy v1's body, got %q", v3.UserContext)
	}
	if v3.ChangeType != targetcontext.ChangeRollback || v3.CreatedBy != "system" {
		t.Fatalf("expected rollback metadata, got %+v", v3)
	}
	if v3.ChangeSummary != "Rolled back to version 1" {
		t.Fatalf("unexpected change summary: %q", v3.ChangeSummary)
	}

	versions, err := svc.ListVersions(ctx, targetID, 10, 0)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected all 3 versions preserved, got %d", len(versions))
	}
}
