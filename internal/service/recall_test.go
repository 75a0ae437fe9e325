package service

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/technique"
	"github.com/kwkeefer/hiro/internal/domain/vector"
)

func TestRecallService_DisabledEmbedderReportsUnavailable(t *testing.T) {
	s := newTestStore(t)
	svc := NewRecallService(s, vector.NoopEmbedder{})

	_, err := svc.FindSimilarActions(context.Background(), "sql injection on login", "", false, 0.5, 10)
	if err == nil {
		t.Fatal("expected an error when the embedder is disabled")
	}
}

func TestRecallService_FindSimilarActions_RanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	embedder := vector.NewHashEmbedder()
	svc := NewRecallService(s, embedder)

	missions := sqlstore.NewLazyMissionRepo(s)
	m := missiondomain.Mission{Name: "m", Type: missiondomain.TypeGeneral}
	if err := missions.Create(ctx, &m); err != nil {
		t.Fatalf("Create mission: %v", err)
	}

	actions := sqlstore.NewLazyActionRepo(s)
	matching := missiondomain.MissionAction{MissionID: m.ID, ActionType: missiondomain.ActionTypePayloadTest, Technique: "sqli"}
	matching.ActionEmbedding, _ = embedder.EncodeText(ctx, "sql injection payload test on login form")
	if err := actions.Create(ctx, &matching); err != nil {
		t.Fatalf("Create action: %v", err)
	}

	unrelated := missiondomain.MissionAction{MissionID: m.ID, ActionType: missiondomain.ActionTypeRecon, Technique: "portscan"}
	unrelated.ActionEmbedding, _ = embedder.EncodeText(ctx, "network port scan discovery enumeration")
	if err := actions.Create(ctx, &unrelated); err != nil {
		t.Fatalf("Create action: %v", err)
	}

	results, err := svc.FindSimilarActions(ctx, "sql injection login form", "", false, 0.0, 10)
	if err != nil {
		t.Fatalf("FindSimilarActions: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both actions within a theta of 0, got %d", len(results))
	}
	if results[0].Action.Technique != "sqli" {
		t.Fatalf("expected the sqli action to rank first, got %q", results[0].Action.Technique)
	}
}

func TestRecallService_SearchTechniqueLibrary_FiltersByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	embedder := vector.NewHashEmbedder()
	svc := NewRecallService(s, embedder)

	techniques := sqlstore.NewLazyTechniqueRepo(s)
	a := technique.Technique{Category: "injection", Title: "classic sqli", Content: "union based sql injection"}
	a.ContentEmbedding, _ = embedder.EncodeText(ctx, a.Content)
	if err := techniques.Create(ctx, &a); err != nil {
		t.Fatalf("Create technique: %v", err)
	}
	b := technique.Technique{Category: "recon", Title: "subdomain enum", Content: "subdomain enumeration via dns brute force"}
	b.ContentEmbedding, _ = embedder.EncodeText(ctx, b.Content)
	if err := techniques.Create(ctx, &b); err != nil {
		t.Fatalf("Create technique: %v", err)
	}

	results, err := svc.SearchTechniqueLibrary(ctx, "sql injection", "injection", 0.0, 10)
	if err != nil {
		t.Fatalf("SearchTechniqueLibrary: %v", err)
	}
	if len(results) != 1 || results[0].Technique.Title != "classic sqli" {
		t.Fatalf("expected only the injection-category technique, got %+v", results)
	}
}
