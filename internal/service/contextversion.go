package service

import (
	"context"
	"fmt"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/target"
	"github.com/kwkeefer/hiro/internal/domain/targetcontext"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// CreateVersionParams is the validated input to CreateVersion.
type CreateVersionParams struct {
	TargetID        string
	UserContext     string
	AgentContext    string
	CreatedBy       string
	ChangeType      targetcontext.ChangeType
	ChangeSummary   string
	ParentVersionID *string
	IsMajorVersion  bool
}

// ContextVersionService implements spec §4.G: an append-only,
// per-target-serializable version chain of context notes.
type ContextVersionService struct {
	store *sqlstore.Store
}

// NewContextVersionService wires the versioner on top of a shared Store;
// CreateVersion opens its own WithImmediateTx scope so "compute next
// version, insert, advance pointer" is serializable per target.
func NewContextVersionService(store *sqlstore.Store) *ContextVersionService {
	return &ContextVersionService{store: store}
}

// CreateVersion computes the next version number, defaults the parent
// to the target's current context, inserts the new row, and advances
// Target.CurrentContextID — all inside one BEGIN IMMEDIATE transaction,
// so two concurrent writers for the same target serialize on the
// write lock instead of racing to read the same max version. The
// (target_id, version) unique constraint is the fallback: if a
// conflict slips through anyway, WithImmediateTx retries the whole
// read-then-insert with bounded backoff.
func (s *ContextVersionService) CreateVersion(ctx context.Context, p CreateVersionParams) (*targetcontext.TargetContext, error) {
	var created targetcontext.TargetContext
	err := s.store.WithImmediateTx(ctx, func(q sqlstore.Querier) error {
		contexts := sqlstore.NewContextRepo(q)
		targets := sqlstore.NewTargetRepo(q)

		maxVersion, err := contexts.MaxVersion(ctx, p.TargetID)
		if err != nil {
			return err
		}

		parentVersionID := p.ParentVersionID
		if parentVersionID == nil {
			t, err := targets.GetByID(ctx, p.TargetID)
			if err != nil {
				return err
			}
			parentVersionID = t.CurrentContextID
		}

		c := targetcontext.TargetContext{
			TargetID:        p.TargetID,
			Version:         maxVersion + 1,
			UserContext:     p.UserContext,
			AgentContext:    p.AgentContext,
			ParentVersionID: parentVersionID,
			ChangeType:      p.ChangeType,
			ChangeSummary:   p.ChangeSummary,
			CreatedBy:       p.CreatedBy,
			IsMajorVersion:  p.IsMajorVersion,
			TokensCount:     approxTokenCount(p.UserContext, p.AgentContext),
		}
		if err := contexts.Insert(ctx, &c); err != nil {
			return err
		}
		if err := targets.SetCurrentContext(ctx, p.TargetID, c.ID); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// approxTokenCount estimates tokens as (len(user)+len(agent))/4, the
// same rough chars-per-token heuristic spec §4.G specifies.
func approxTokenCount(userContext, agentContext string) int {
	return (len(userContext) + len(agentContext)) / 4
}

// GetCurrent follows Target.CurrentContextID.
func (s *ContextVersionService) GetCurrent(ctx context.Context, targetID string) (*targetcontext.TargetContext, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	targets := sqlstore.NewTargetRepo(db)
	t, err := targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if t.CurrentContextID == nil {
		return nil, toolerr.ErrNotFound
	}
	contexts := sqlstore.NewContextRepo(db)
	return contexts.GetByID(ctx, *t.CurrentContextID)
}

// GetVersion fetches a single version by its own id.
func (s *ContextVersionService) GetVersion(ctx context.Context, id string) (*targetcontext.TargetContext, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewContextRepo(db).GetByID(ctx, id)
}

// GetVersionByNumber fetches a target's version N.
func (s *ContextVersionService) GetVersionByNumber(ctx context.Context, targetID string, version int) (*targetcontext.TargetContext, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewContextRepo(db).GetByTargetAndVersion(ctx, targetID, version)
}

// ListVersions lists a target's versions, newest first.
func (s *ContextVersionService) ListVersions(ctx context.Context, targetID string, limit, offset int) ([]targetcontext.TargetContext, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewContextRepo(db).ListVersions(ctx, targetID, limit, offset)
}

// SearchContexts substring-matches across contexts and returns each
// match paired with its owning Target.
func (s *ContextVersionService) SearchContexts(ctx context.Context, params targetcontext.SearchParams) ([]ContextWithTarget, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	contexts := sqlstore.NewContextRepo(db)
	targets := sqlstore.NewTargetRepo(db)

	matches, err := contexts.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	out := make([]ContextWithTarget, 0, len(matches))
	for _, c := range matches {
		t, err := targets.GetByID(ctx, c.TargetID)
		if err != nil {
			return nil, err
		}
		out = append(out, ContextWithTarget{Context: c, Target: *t})
	}
	return out, nil
}

// ContextWithTarget pairs a matched context version with its owning
// Target, as returned by search_contexts.
type ContextWithTarget struct {
	Context targetcontext.TargetContext
	Target  target.Target
}

// RollbackToVersion creates a NEW version whose bodies are copied from
// versionID, preserving append-only semantics rather than mutating
// history.
func (s *ContextVersionService) RollbackToVersion(ctx context.Context, targetID, versionID string) (*targetcontext.TargetContext, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	source, err := sqlstore.NewContextRepo(db).GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if source.TargetID != targetID {
		return nil, &toolerr.ToolError{Tool: "get_target_context", Message: "version does not belong to target"}
	}

	parent := versionID
	return s.CreateVersion(ctx, CreateVersionParams{
		TargetID:        targetID,
		UserContext:     source.UserContext,
		AgentContext:    source.AgentContext,
		CreatedBy:       "system",
		ChangeType:      targetcontext.ChangeRollback,
		ChangeSummary:   fmt.Sprintf("Rolled back to version %d", source.Version),
		ParentVersionID: &parent,
		IsMajorVersion:  source.IsMajorVersion,
	})
}
