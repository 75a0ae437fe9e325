package mcpserver

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/cookiesession"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/memory"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/target"
	"github.com/kwkeefer/hiro/internal/domain/vector"
	"github.com/kwkeefer/hiro/internal/service"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store := sqlstore.New("file::memory:?cache=shared", 1, 0, 5*time.Second)
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("open store: %v", err)
	}

	embedder := vector.NewHashEmbedder()
	pointers := memory.NewMissionPointerStore()
	recall := service.NewRecallService(store, embedder)

	deps := Deps{
		HTTPTool:       service.NewHTTPToolService(service.HTTPToolConfig{LoggingEnabled: false}, nil, nil, nil, nil, nil),
		Target:         service.NewTargetService(store),
		ContextVersion: service.NewContextVersionService(store),
		Mission:        service.NewMissionService(store, pointers, embedder, nil),
		Recall:         recall,
		TechniqueStats: service.NewTechniqueStatsService(store, recall),
		Library:        service.NewLibraryService(store, recall, embedder),
	}
	return New(deps)
}

func TestBuild_ReturnsServer(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	server := r.Build("hiro-test", "0.0.0-test")
	if server == nil {
		t.Fatal("Build() returned nil server")
	}
}

func TestCreateTargetThenSearch(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.createTarget(ctx, nil, CreateTargetArgs{
		Host:     "example.test",
		Protocol: "https",
		Status:   "active",
	})
	if err != nil {
		t.Fatalf("createTarget: %v", err)
	}
	if created == nil {
		t.Fatal("createTarget returned nil result")
	}

	results, err := r.searchTargets(ctx, nil, SearchTargetsArgs{Query: "example"})
	if err != nil {
		t.Fatalf("searchTargets: %v", err)
	}
	if results == nil {
		t.Fatal("searchTargets returned nil result")
	}
}

func TestCreateMissionRequiresValidation(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	_, err := r.createMission(context.Background(), nil, CreateMissionArgs{})
	if err == nil {
		t.Fatal("expected a validation error for an empty create_mission call")
	}
}

func TestMissionActionLifecycle_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	ctx := context.Background()

	targetAny, err := r.createTarget(ctx, nil, CreateTargetArgs{Host: "mission.test", Protocol: "https"})
	if err != nil {
		t.Fatalf("createTarget: %v", err)
	}
	tgt, ok := targetAny.(*target.Target)
	if !ok {
		t.Fatalf("createTarget returned %T, want *target.Target", targetAny)
	}

	missionAny, err := r.createMission(ctx, nil, CreateMissionArgs{
		TargetID:    tgt.ID,
		MissionType: "recon",
		Name:        "initial recon",
		Goal:        "map the login flow",
	})
	if err != nil {
		t.Fatalf("createMission: %v", err)
	}
	mission, ok := missionAny.(*missiondomain.Mission)
	if !ok {
		t.Fatalf("createMission returned %T, want *missiondomain.Mission", missionAny)
	}

	if _, err := r.recordAction(ctx, nil, RecordActionArgs{
		MissionID:  mission.ID,
		ActionType: "recon",
		Technique:  "directory brute force",
		Result:     "found /admin",
		Success:    "yes",
	}); err != nil {
		t.Fatalf("recordAction: %v", err)
	}

	summaryAny, err := r.getMissionContext(ctx, nil, GetMissionContextArgs{MissionID: mission.ID})
	if err != nil {
		t.Fatalf("getMissionContext: %v", err)
	}
	summary, ok := summaryAny.(*service.MissionSummary)
	if !ok {
		t.Fatalf("getMissionContext returned %T, want *service.MissionSummary", summaryAny)
	}
	if summary.TotalActions != 1 {
		t.Fatalf("expected 1 total action, got %d", summary.TotalActions)
	}
	if summary.SuccessfulCount != 1 {
		t.Fatalf("expected 1 successful action, got %d", summary.SuccessfulCount)
	}
}

func TestLibraryAddThenSearch(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.addToLibrary(ctx, nil, AddToLibraryArgs{
		Category: "sqli",
		Title:    "UNION-based SQL injection",
		Content:  "union based sql injection exfiltrates data via an injectable column",
	}); err != nil {
		t.Fatalf("addToLibrary: %v", err)
	}

	results, err := r.searchLibrary(ctx, nil, SearchLibraryArgs{Query: "union based sql injection exfiltrates data via an injectable column"})
	if err != nil {
		t.Fatalf("searchLibrary: %v", err)
	}
	scored, ok := results.([]service.ScoredTechnique)
	if !ok {
		t.Fatalf("searchLibrary returned %T, want []service.ScoredTechnique", results)
	}
	if len(scored) == 0 {
		t.Fatal("expected at least one scored technique result")
	}
}

func TestCookieResourceRead_InsecurePermissions(t *testing.T) {
	dataDir := t.TempDir()
	cookiePath := dataDir + "/leaky.json"
	if err := os.WriteFile(cookiePath, []byte(`{"session_id":"abc"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	manifestPath := dataDir + "/cookie_sessions.yaml"
	manifest := "version: \"1.0\"\nsessions:\n  leaky:\n    description: leaky session\n    cookie_file: leaky.json\n"
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o600); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}

	provider := cookiesession.NewProvider(manifestPath, dataDir)
	resp := provider.Read("leaky")
	if resp.Error == "" {
		t.Fatal("expected an error for a 0644 cookie file")
	}
	if len(resp.Cookies) != 0 {
		t.Fatalf("expected empty cookies on error, got %#v", resp.Cookies)
	}
}
