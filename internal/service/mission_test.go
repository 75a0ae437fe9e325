package service

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/memory"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/vector"
)

func TestMissionService_CreateAndRecordAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targetID := seedTarget(t, ctx, s)
	pointers := memory.NewMissionPointerStore()
	svc := NewMissionService(s, pointers, vector.NoopEmbedder{}, nil)

	m, err := svc.CreateMission(ctx, CreateMissionParams{
		TargetID: targetID, Type: missiondomain.TypeAuthBypass, Name: "bypass admin login", Goal: "bypass auth",
	})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	if m.Status != missiondomain.StatusActive {
		t.Fatalf("expected new mission to be active, got %q", m.Status)
	}

	if err := svc.SetMissionContext(ctx, memory.GlobalConnectionKey, m.ID); err != nil {
		t.Fatalf("SetMissionContext: %v", err)
	}

	if _, err := svc.RecordAction(ctx, RecordActionParams{
		MissionID: m.ID, ActionType: missiondomain.ActionTypePayloadTest, Technique: "sqli", Success: true,
	}); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	summary, err := svc.GetMissionContext(ctx, memory.GlobalConnectionKey, "")
	if err != nil {
		t.Fatalf("GetMissionContext: %v", err)
	}
	if summary.TotalActions != 1 || summary.SuccessfulCount != 1 || summary.SuccessRate != 1.0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestMissionService_GetMissionContext_NoCurrentMission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pointers := memory.NewMissionPointerStore()
	svc := NewMissionService(s, pointers, vector.NoopEmbedder{}, nil)

	_, err := svc.GetMissionContext(ctx, memory.GlobalConnectionKey, "")
	if err == nil {
		t.Fatal("expected an error when no mission is current")
	}
}

func TestMissionService_CompleteMission_ClearsPointer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targetID := seedTarget(t, ctx, s)
	pointers := memory.NewMissionPointerStore()
	svc := NewMissionService(s, pointers, vector.NoopEmbedder{}, nil)

	m, err := svc.CreateMission(ctx, CreateMissionParams{TargetID: targetID, Type: missiondomain.TypeGeneral, Name: "m", Goal: "g"})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	if err := svc.SetMissionContext(ctx, memory.GlobalConnectionKey, m.ID); err != nil {
		t.Fatalf("SetMissionContext: %v", err)
	}
	if err := svc.CompleteMission(ctx, memory.GlobalConnectionKey, m.ID); err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}
	if _, ok := pointers.Get(memory.GlobalConnectionKey); ok {
		t.Fatal("expected pointer to be cleared after completing the current mission")
	}
}
