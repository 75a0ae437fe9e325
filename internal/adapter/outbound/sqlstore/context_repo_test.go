package sqlstore

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/domain/targetcontext"
)

func TestContextRepo_VersionChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := NewLazyTargetRepo(s)
	contexts := NewLazyContextRepo(s)

	tgt, err := targets.GetOrCreateFromURL(ctx, "https://chain.example.com/")
	if err != nil {
		t.Fatalf("GetOrCreateFromURL: %v", err)
	}

	v1 := targetcontext.TargetContext{
		TargetID: tgt.ID, Version: 1, UserContext: "A",
		ChangeType: targetcontext.ChangeUserEdit, CreatedBy: "user",
	}
	if err := contexts.Insert(ctx, &v1); err != nil {
		t.Fatalf("Insert v1: %v", err)
	}
	if v1.ParentVersionID != nil {
		t.Fatalf("version 1 must have no parent, got %v", v1.ParentVersionID)
	}

	v2 := targetcontext.TargetContext{
		TargetID: tgt.ID, Version: 2, UserContext: "B", ParentVersionID: &v1.ID,
		ChangeType: targetcontext.ChangeAgentUpdate, CreatedBy: "agent",
	}
	if err := contexts.Insert(ctx, &v2); err != nil {
		t.Fatalf("Insert v2: %v", err)
	}

	max, err := contexts.MaxVersion(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("MaxVersion: %v", err)
	}
	if max != 2 {
		t.Fatalf("expected max version 2, got %d", max)
	}

	versions, err := contexts.ListVersions(ctx, tgt.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 || versions[1].Version != 1 {
		t.Fatalf("expected versions descending [2,1], got %+v", versions)
	}
	if *versions[0].ParentVersionID != v1.ID {
		t.Fatalf("version 2's parent should be version 1's id")
	}
}

func TestContextRepo_UniqueVersionPerTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := NewLazyTargetRepo(s)
	contexts := NewLazyContextRepo(s)

	tgt, _ := targets.GetOrCreateFromURL(ctx, "https://dupe.example.com/")
	v1 := targetcontext.TargetContext{TargetID: tgt.ID, Version: 1, ChangeType: targetcontext.ChangeUserEdit, CreatedBy: "user"}
	if err := contexts.Insert(ctx, &v1); err != nil {
		t.Fatalf("Insert v1: %v", err)
	}
	dup := targetcontext.TargetContext{TargetID: tgt.ID, Version: 1, ChangeType: targetcontext.ChangeUserEdit, CreatedBy: "user"}
	if err := contexts.Insert(ctx, &dup); err == nil {
		t.Fatal("expected a unique constraint violation on duplicate (target_id, version)")
	}
}

func TestContextRepo_Search_SubstringMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targets := NewLazyTargetRepo(s)
	contexts := NewLazyContextRepo(s)

	tgt, _ := targets.GetOrCreateFromURL(ctx, "https://search.example.com/")
	c := targetcontext.TargetContext{
		TargetID: tgt.ID, Version: 1, UserContext: "found the SQL injection point",
		ChangeType: targetcontext.ChangeUserEdit, CreatedBy: "user",
	}
	if err := contexts.Insert(ctx, &c); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := contexts.Search(ctx, targetcontext.SearchParams{Query: "SQL injection", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
}
