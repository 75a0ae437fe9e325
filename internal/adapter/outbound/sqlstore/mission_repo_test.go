package sqlstore

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
)

func TestMissionRepo_CreateAndComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	missions := NewLazyMissionRepo(s)

	m := missiondomain.Mission{Name: "recon sweep", Type: missiondomain.TypeRecon, Goal: "map the API surface"}
	if err := missions.Create(ctx, &m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Status != missiondomain.StatusActive {
		t.Fatalf("expected default status active, got %s", m.Status)
	}

	got, err := missions.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected nil completed_at before completion")
	}

	if err := missions.Complete(ctx, m.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err = missions.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID (2nd): %v", err)
	}
	if got.Status != missiondomain.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed mission with completed_at set, got %+v", got)
	}
	if got.CompletedAt.Before(got.CreatedAt) {
		t.Fatalf("completed_at %v must not precede created_at %v", got.CompletedAt, got.CreatedAt)
	}
}

func TestMissionRepo_LinkTarget_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	missions := NewLazyMissionRepo(s)
	targets := NewLazyTargetRepo(s)

	m := missiondomain.Mission{Name: "m", Type: missiondomain.TypeGeneral}
	if err := missions.Create(ctx, &m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tgt, _ := targets.GetOrCreateFromURL(ctx, "https://linked.example.com/")

	if err := missions.LinkTarget(ctx, m.ID, tgt.ID); err != nil {
		t.Fatalf("LinkTarget: %v", err)
	}
	if err := missions.LinkTarget(ctx, m.ID, tgt.ID); err != nil {
		t.Fatalf("LinkTarget (2nd): %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mission_targets WHERE mission_id = ? AND target_id = ?`, m.ID, tgt.ID).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one join row, got %d", count)
	}
}
