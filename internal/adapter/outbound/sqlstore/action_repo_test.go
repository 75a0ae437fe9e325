package sqlstore

import (
	"context"
	"testing"

	"github.com/kwkeefer/hiro/internal/domain/httprequest"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
)

func TestActionRepo_SummaryCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	missions := NewLazyMissionRepo(s)
	actions := NewLazyActionRepo(s)

	m := missiondomain.Mission{Name: "m", Type: missiondomain.TypeGeneral}
	if err := missions.Create(ctx, &m); err != nil {
		t.Fatalf("Create mission: %v", err)
	}

	for i, ok := range []bool{true, false, true} {
		a := missiondomain.MissionAction{
			MissionID: m.ID, ActionType: missiondomain.ActionTypePayloadTest,
			Technique: "technique", Success: ok,
		}
		_ = i
		if err := actions.Create(ctx, &a); err != nil {
			t.Fatalf("Create action: %v", err)
		}
	}

	total, success, unique, err := actions.SummaryCounts(ctx, m.ID)
	if err != nil {
		t.Fatalf("SummaryCounts: %v", err)
	}
	if total != 3 || success != 2 || unique != 1 {
		t.Fatalf("expected total=3 success=2 unique=1, got total=%d success=%d unique=%d", total, success, unique)
	}
}

func TestActionRepo_LinkRecentRequests_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	missions := NewLazyMissionRepo(s)
	actions := NewLazyActionRepo(s)
	requests := NewLazyHttpRequestRepo(s)

	m := missiondomain.Mission{Name: "m", Type: missiondomain.TypeGeneral}
	if err := missions.Create(ctx, &m); err != nil {
		t.Fatalf("Create mission: %v", err)
	}
	a := missiondomain.MissionAction{MissionID: m.ID, ActionType: missiondomain.ActionTypeRecon, Technique: "scan"}
	if err := actions.Create(ctx, &a); err != nil {
		t.Fatalf("Create action: %v", err)
	}

	missionID := m.ID
	req := httprequest.HttpRequest{MissionID: &missionID, Method: "GET", URL: "https://scan.example.com/"}
	id, err := requests.Create(ctx, &req)
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	if err := actions.LinkRecentRequests(ctx, a.ID, []string{id}); err != nil {
		t.Fatalf("LinkRecentRequests: %v", err)
	}
	if err := actions.LinkRecentRequests(ctx, a.ID, []string{id}); err != nil {
		t.Fatalf("LinkRecentRequests (2nd): %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM action_http_requests WHERE action_id = ? AND request_id = ?`, a.ID, id).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one join row, got %d", count)
	}
}
