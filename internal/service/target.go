package service

import (
	"context"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/target"
)

// CreateTargetParams is the validated input to CreateTarget.
type CreateTargetParams struct {
	Host      string
	Port      *int
	Protocol  string
	Title     string
	Status    target.Status
	RiskLevel target.RiskLevel
}

// UpdateTargetStatusParams is the validated input to UpdateTargetStatus.
type UpdateTargetStatusParams struct {
	TargetID  string
	Status    *target.Status
	RiskLevel *target.RiskLevel
	Title     string
}

// TargetService implements the target registry tools named in spec §6:
// manual registration, status updates, the aggregated summary read
// model, and filtered search. Distinct from Target.GetOrCreateFromURL,
// which the HTTP tool drives directly via sqlstore.TargetRepo.
type TargetService struct {
	store *sqlstore.Store
}

// NewTargetService wires the target registry on top of a shared Store.
func NewTargetService(store *sqlstore.Store) *TargetService {
	return &TargetService{store: store}
}

// CreateTarget registers a target endpoint directly, bypassing the
// HTTP tool's get-or-create-from-URL path — used when an analyst
// already knows the endpoint but hasn't issued a request against it yet.
func (s *TargetService) CreateTarget(ctx context.Context, p CreateTargetParams) (*target.Target, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	targets := sqlstore.NewTargetRepo(db)

	t := target.Target{
		Host:      p.Host,
		Port:      p.Port,
		Protocol:  p.Protocol,
		Title:     p.Title,
		Status:    p.Status,
		RiskLevel: p.RiskLevel,
		ExtraData: map[string]string{},
	}
	if t.Status == "" {
		t.Status = target.StatusActive
	}
	if t.RiskLevel == "" {
		t.RiskLevel = target.RiskMedium
	}

	if err := targets.Create(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTargetStatus patches a target's status and/or risk level and
// descriptive title.
func (s *TargetService) UpdateTargetStatus(ctx context.Context, p UpdateTargetStatusParams) (*target.Target, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	targets := sqlstore.NewTargetRepo(db)

	current, err := targets.GetByID(ctx, p.TargetID)
	if err != nil {
		return nil, err
	}

	status := current.Status
	if p.Status != nil {
		status = *p.Status
	}
	if err := targets.UpdateStatus(ctx, p.TargetID, status, p.RiskLevel); err != nil {
		return nil, err
	}
	if p.Title != "" {
		if err := targets.UpdateTitle(ctx, p.TargetID, p.Title); err != nil {
			return nil, err
		}
	}
	return targets.GetByID(ctx, p.TargetID)
}

// GetTargetSummary returns a target plus its aggregated child counts.
func (s *TargetService) GetTargetSummary(ctx context.Context, targetID string) (*target.Summary, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := sqlstore.NewTargetRepo(db).GetSummary(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// SearchTargets filters targets by status, risk level, protocol, and a
// substring match on host or title.
func (s *TargetService) SearchTargets(ctx context.Context, params target.SearchParams) ([]target.Target, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewTargetRepo(db).Search(ctx, params)
}
