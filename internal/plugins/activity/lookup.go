package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
)

// Current-state references returned by Lookup. They carry only what the
// resolvers display.

// UserRef is a live user row. The password and billing columns are never
// selected.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

type TaskRef struct {
	ID        string
	ProjectID string
	Title     string
}

type MilestoneRef struct {
	ID        string
	ProjectID string
	Name      string
}

type LabelRef struct {
	ID   string
	Name string
}

// CommentRef is a live comment with the project of its task.
type CommentRef struct {
	ID        string
	TaskID    string
	ProjectID string
}

type AssignmentRef struct {
	ID         string
	TaskID     string
	UserID     string
	AssignedBy string
}

// Lookup provides point reads of the live tables. Every method returns an
// apperror NotFound when the row no longer exists; any other error is a
// storage failure.
type Lookup interface {
	FindUser(ctx context.Context, id string) (*UserRef, error)
	FindProject(ctx context.Context, id string) (*ProjectRef, error)
	FindTask(ctx context.Context, id string) (*TaskRef, error)
	FindMilestone(ctx context.Context, id string) (*MilestoneRef, error)
	FindLabel(ctx context.Context, id string) (*LabelRef, error)
	FindComment(ctx context.Context, id string) (*CommentRef, error)
	FindAssignment(ctx context.Context, taskID, userID string) (*AssignmentRef, error)
}

// lookupRepository implements Lookup with MariaDB queries.
type lookupRepository struct {
	db *sql.DB
}

// NewLookupRepository creates a Lookup backed by the given DB pool.
func NewLookupRepository(db *sql.DB) Lookup {
	return &lookupRepository{db: db}
}

func (r *lookupRepository) FindUser(ctx context.Context, id string) (*UserRef, error) {
	u := &UserRef{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if err := notFound(err, "user"); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *lookupRepository) FindProject(ctx context.Context, id string) (*ProjectRef, error) {
	p := &ProjectRef{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name)
	if err := notFound(err, "project"); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *lookupRepository) FindTask(ctx context.Context, id string) (*TaskRef, error) {
	t := &TaskRef{}
	err := r.db.QueryRowContext(ctx, `SELECT id, project_id, title FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.ProjectID, &t.Title)
	if err := notFound(err, "task"); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *lookupRepository) FindMilestone(ctx context.Context, id string) (*MilestoneRef, error) {
	m := &MilestoneRef{}
	err := r.db.QueryRowContext(ctx, `SELECT id, project_id, name FROM milestones WHERE id = ?`, id).
		Scan(&m.ID, &m.ProjectID, &m.Name)
	if err := notFound(err, "milestone"); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *lookupRepository) FindLabel(ctx context.Context, id string) (*LabelRef, error) {
	l := &LabelRef{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM labels WHERE id = ?`, id).
		Scan(&l.ID, &l.Name)
	if err := notFound(err, "label"); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *lookupRepository) FindComment(ctx context.Context, id string) (*CommentRef, error) {
	query := `SELECT c.id, c.task_id, t.project_id
	          FROM comments c
	          INNER JOIN tasks t ON t.id = c.task_id
	          WHERE c.id = ?`
	c := &CommentRef{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.TaskID, &c.ProjectID)
	if err := notFound(err, "comment"); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *lookupRepository) FindAssignment(ctx context.Context, taskID, userID string) (*AssignmentRef, error) {
	query := `SELECT id, task_id, user_id, COALESCE(assigned_by, '')
	          FROM assignments WHERE task_id = ? AND user_id = ?`
	a := &AssignmentRef{}
	err := r.db.QueryRowContext(ctx, query, taskID, userID).
		Scan(&a.ID, &a.TaskID, &a.UserID, &a.AssignedBy)
	if err := notFound(err, "assignment"); err != nil {
		return nil, err
	}
	return a, nil
}

// notFound maps sql.ErrNoRows to an apperror NotFound and wraps anything else.
func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNotFound(what + " not found")
	}
	return fmt.Errorf("querying %s: %w", what, err)
}

// --- Request-scoped memoization ---

// memoLookup caches lookups for the duration of one feed assembly so a user
// or task referenced by many records is read once. NotFound results are
// cached too; storage errors are not. Safe for concurrent use.
type memoLookup struct {
	Lookup

	mu      sync.Mutex
	entries map[string]memoEntry
}

type memoEntry struct {
	val any
	err error
}

func newMemoLookup(l Lookup) *memoLookup {
	return &memoLookup{Lookup: l, entries: make(map[string]memoEntry)}
}

// seedProject records a project already known to the caller.
func (m *memoLookup) seedProject(p ProjectRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := p
	m.entries["project:"+p.ID] = memoEntry{val: &ref}
}

// memoize returns the cached result for key or runs fetch and caches it.
// Two goroutines missing the same key may both fetch; the lookups are
// read-only so the duplicate is harmless.
func memoize[T any](m *memoLookup, key string, fetch func() (*T, error)) (*T, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if ok {
		if e.err != nil {
			return nil, e.err
		}
		return e.val.(*T), nil
	}

	v, err := fetch()
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	m.mu.Lock()
	m.entries[key] = memoEntry{val: v, err: err}
	m.mu.Unlock()
	return v, err
}

func (m *memoLookup) FindUser(ctx context.Context, id string) (*UserRef, error) {
	return memoize(m, "user:"+id, func() (*UserRef, error) { return m.Lookup.FindUser(ctx, id) })
}

func (m *memoLookup) FindProject(ctx context.Context, id string) (*ProjectRef, error) {
	return memoize(m, "project:"+id, func() (*ProjectRef, error) { return m.Lookup.FindProject(ctx, id) })
}

func (m *memoLookup) FindTask(ctx context.Context, id string) (*TaskRef, error) {
	return memoize(m, "task:"+id, func() (*TaskRef, error) { return m.Lookup.FindTask(ctx, id) })
}

func (m *memoLookup) FindMilestone(ctx context.Context, id string) (*MilestoneRef, error) {
	return memoize(m, "milestone:"+id, func() (*MilestoneRef, error) { return m.Lookup.FindMilestone(ctx, id) })
}

func (m *memoLookup) FindLabel(ctx context.Context, id string) (*LabelRef, error) {
	return memoize(m, "label:"+id, func() (*LabelRef, error) { return m.Lookup.FindLabel(ctx, id) })
}
