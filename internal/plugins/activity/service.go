package activity

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
	"github.com/FarkasZalan/Novo-sub000/internal/config"
)

// ActivityService assembles activity feeds for an acting user. Every entry
// point runs the same pipeline: fetch raw records, reconcile them (purging
// noise), enrich the survivors and return them in repository order.
type ActivityService interface {
	// DashboardFeed returns up to the per-project cap of entries for every
	// project the actor belongs to, grouped by project. Groups follow the
	// membership order (newest project first) and there is no global sort.
	DashboardFeed(ctx context.Context, actorID string) ([]EnrichedLogEntry, error)

	// AllActivity returns one newest-first page across all of the actor's
	// projects, optionally restricted to kinds. A non-positive limit uses
	// the configured default; larger limits are clamped to the maximum.
	AllActivity(ctx context.Context, actorID string, kinds []Kind, limit int) (*FeedPage, error)

	// ProjectFeed returns the latest entries of one project. The actor must
	// be a member.
	ProjectFeed(ctx context.Context, actorID, projectID string) ([]EnrichedLogEntry, error)

	// TaskFeed returns the latest task-scoped entries of one live task. The
	// actor must be a member of the task's project.
	TaskFeed(ctx context.Context, actorID, taskID string) ([]EnrichedLogEntry, error)

	// EntityFeed returns the history of one comment, milestone or user.
	// Comments and milestones require membership of their project; a user
	// feed is only available for the actor's own account.
	EntityFeed(ctx context.Context, actorID string, kind Kind, entityID string) ([]EnrichedLogEntry, error)
}

// activityService implements ActivityService.
type activityService struct {
	repo       ChangeLogRepository
	membership MembershipRepository
	lookup     Lookup
	cfg        config.FeedConfig
}

// NewActivityService creates a new activity service.
func NewActivityService(repo ChangeLogRepository, membership MembershipRepository, lookup Lookup, cfg config.FeedConfig) ActivityService {
	return &activityService{repo: repo, membership: membership, lookup: lookup, cfg: cfg}
}

// DashboardFeed fetches each project's records in parallel and concatenates
// them in project order before a single reconcile-and-enrich pass.
func (s *activityService) DashboardFeed(ctx context.Context, actorID string) ([]EnrichedLogEntry, error) {
	projects, err := s.membership.ListProjectsByUser(ctx, actorID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing projects for dashboard: %w", err))
	}
	if len(projects) == 0 {
		return []EnrichedLogEntry{}, nil
	}

	groups := make([][]ChangeLogRecord, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, p := range projects {
		g.Go(func() error {
			records, err := s.repo.ListByProject(gctx, p.ID, ListOptions{Limit: s.cfg.DashboardPerProject})
			if err != nil {
				return fmt.Errorf("listing activity of project %s: %w", p.ID, err)
			}
			groups[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	var records []ChangeLogRecord
	for _, group := range groups {
		records = append(records, group...)
	}
	return s.assemble(ctx, s.requestLookup(projects), actorID, records)
}

func (s *activityService) AllActivity(ctx context.Context, actorID string, kinds []Kind, limit int) (*FeedPage, error) {
	limit = s.clampLimit(limit)
	page := &FeedPage{Entries: []EnrichedLogEntry{}, Limit: limit}

	projects, err := s.membership.ListProjectsByUser(ctx, actorID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing projects for activity: %w", err))
	}
	if len(projects) == 0 {
		return page, nil
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	records, err := s.repo.ListByProjects(ctx, ids, ListOptions{Kinds: kinds, Limit: limit})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing activity: %w", err))
	}

	entries, err := s.assemble(ctx, s.requestLookup(projects), actorID, records)
	if err != nil {
		return nil, err
	}
	page.Entries = entries
	// Counted before reconciliation so purged noise does not hide a next page.
	page.HasMore = len(records) == limit
	return page, nil
}

func (s *activityService) ProjectFeed(ctx context.Context, actorID, projectID string) ([]EnrichedLogEntry, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListByProject(ctx, projectID, ListOptions{Limit: s.cfg.ProjectCap})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing project activity: %w", err))
	}
	return s.assemble(ctx, s.requestLookup(nil), actorID, records)
}

func (s *activityService) TaskFeed(ctx context.Context, actorID, taskID string) ([]EnrichedLogEntry, error) {
	lookup := s.requestLookup(nil)

	task, err := lookup.FindTask(ctx, taskID)
	if err != nil {
		return nil, wrapLookupErr(err, "finding task")
	}
	if err := s.requireMember(ctx, task.ProjectID, actorID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListByTask(ctx, taskID, ListOptions{Kinds: TaskKinds, Limit: s.cfg.TaskCap})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing task activity: %w", err))
	}
	return s.assemble(ctx, lookup, actorID, records)
}

func (s *activityService) EntityFeed(ctx context.Context, actorID string, kind Kind, entityID string) ([]EnrichedLogEntry, error) {
	lookup := s.requestLookup(nil)

	switch kind {
	case KindComments:
		comment, err := lookup.FindComment(ctx, entityID)
		if err != nil {
			return nil, wrapLookupErr(err, "finding comment")
		}
		if err := s.requireMember(ctx, comment.ProjectID, actorID); err != nil {
			return nil, err
		}
	case KindMilestones:
		milestone, err := lookup.FindMilestone(ctx, entityID)
		if err != nil {
			return nil, wrapLookupErr(err, "finding milestone")
		}
		if err := s.requireMember(ctx, milestone.ProjectID, actorID); err != nil {
			return nil, err
		}
	case KindUsers:
		if entityID != actorID {
			return nil, apperror.NewForbidden("you can only view your own account activity")
		}
	default:
		return nil, apperror.NewBadRequest(fmt.Sprintf("entity activity is not available for %q", kind))
	}

	records, err := s.repo.ListByEntity(ctx, kind, entityID, ListOptions{Limit: s.cfg.EntityCap})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing %s activity: %w", kind, err))
	}
	return s.assemble(ctx, lookup, actorID, records)
}

// --- Pipeline ---

// assemble reconciles records in order, purges the noise and enriches the
// survivors in parallel. Output order is input order. A failed purge is
// logged and the record is still dropped; any enrichment failure fails the
// whole feed.
func (s *activityService) assemble(ctx context.Context, lookup Lookup, actorID string, records []ChangeLogRecord) ([]EnrichedLogEntry, error) {
	survivors := make([]*ChangeLogRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if v := Reconcile(rec); v.Noise {
			s.purge(ctx, rec, v.Reason)
			continue
		}
		survivors = append(survivors, rec)
	}

	results := make([]*EnrichedLogEntry, len(survivors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, rec := range survivors {
		g.Go(func() error {
			entry, err := Enrich(gctx, lookup, actorID, rec)
			if err != nil {
				return err
			}
			results[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("enriching activity: %w", err))
	}

	entries := make([]EnrichedLogEntry, len(results))
	for i, e := range results {
		entries[i] = *e
	}
	return entries, nil
}

// purge deletes a noise record. Failures leave the row for a later request.
func (s *activityService) purge(ctx context.Context, rec *ChangeLogRecord, reason string) {
	if err := s.repo.Purge(ctx, rec.ID); err != nil {
		slog.Warn("failed to purge change log",
			slog.String("log_id", rec.ID),
			slog.String("table_name", string(rec.TableName)),
			slog.Any("error", err),
		)
		return
	}
	slog.Debug("purged change log",
		slog.String("log_id", rec.ID),
		slog.String("table_name", string(rec.TableName)),
		slog.String("reason", reason),
	)
}

// requestLookup returns a fresh memoizing lookup for one feed request,
// seeded with projects the caller already loaded.
func (s *activityService) requestLookup(known []ProjectRef) *memoLookup {
	m := newMemoLookup(s.lookup)
	for _, p := range known {
		m.seedProject(p)
	}
	return m
}

func (s *activityService) requireMember(ctx context.Context, projectID, actorID string) error {
	ok, err := s.membership.IsMember(ctx, projectID, actorID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if !ok {
		return apperror.NewForbidden("you are not a member of this project")
	}
	return nil
}

func (s *activityService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	return min(limit, s.cfg.MaxLimit)
}

func (s *activityService) concurrency() int {
	return max(s.cfg.EnrichConcurrency, 1)
}

// wrapLookupErr passes NotFound through and hides anything else behind an
// internal error.
func wrapLookupErr(err error, what string) error {
	if apperror.IsNotFound(err) {
		return err
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", what, err))
}
