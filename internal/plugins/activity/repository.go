package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// ChangeLogRepository reads and purges change_logs rows. All SQL lives in
// the concrete implementation. Every list method returns newest first and
// at most opts.Limit rows.
type ChangeLogRepository interface {
	// ListByProject returns records owned by the project: rows whose image
	// carries the project id, plus the project's own rows.
	ListByProject(ctx context.Context, projectID string, opts ListOptions) ([]ChangeLogRecord, error)

	// ListByProjects is ListByProject across several projects in one query.
	ListByProjects(ctx context.Context, projectIDs []string, opts ListOptions) ([]ChangeLogRecord, error)

	// ListByTask returns rows whose image references the task by task_id,
	// plus the task's own rows.
	ListByTask(ctx context.Context, taskID string, opts ListOptions) ([]ChangeLogRecord, error)

	// ListByEntity returns rows of one table whose image id is entityID.
	ListByEntity(ctx context.Context, kind Kind, entityID string, opts ListOptions) ([]ChangeLogRecord, error)

	// Purge deletes one record. Deleting a record that is already gone is
	// not an error.
	Purge(ctx context.Context, id string) error
}

// changeLogRepository implements ChangeLogRepository with MariaDB queries.
// project_ref, task_ref and entity_ref are indexed generated columns over
// the JSON images (see the change_logs migration).
type changeLogRepository struct {
	db *sql.DB
}

// NewChangeLogRepository creates a new repository backed by the given DB pool.
func NewChangeLogRepository(db *sql.DB) ChangeLogRepository {
	return &changeLogRepository{db: db}
}

const changeLogColumns = `id, table_name, operation, old_data, new_data, changed_by, created_at`

// ListByProject returns the project's records, newest first.
func (r *changeLogRepository) ListByProject(ctx context.Context, projectID string, opts ListOptions) ([]ChangeLogRecord, error) {
	return r.ListByProjects(ctx, []string{projectID}, opts)
}

// ListByProjects matches project_ref for owned rows and entity_ref for the
// project rows themselves.
func (r *changeLogRepository) ListByProjects(ctx context.Context, projectIDs []string, opts ListOptions) ([]ChangeLogRecord, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	in := placeholders(len(projectIDs))
	where := fmt.Sprintf(`(project_ref IN (%s) OR (table_name = 'projects' AND entity_ref IN (%s)))`, in, in)
	args := make([]any, 0, len(projectIDs)*2)
	for _, id := range projectIDs {
		args = append(args, id)
	}
	for _, id := range projectIDs {
		args = append(args, id)
	}
	return r.list(ctx, where, args, opts)
}

// ListByTask returns the task's records, newest first.
func (r *changeLogRepository) ListByTask(ctx context.Context, taskID string, opts ListOptions) ([]ChangeLogRecord, error) {
	where := `(task_ref = ? OR (table_name = 'tasks' AND entity_ref = ?))`
	return r.list(ctx, where, []any{taskID, taskID}, opts)
}

// ListByEntity returns one entity's records, newest first.
func (r *changeLogRepository) ListByEntity(ctx context.Context, kind Kind, entityID string, opts ListOptions) ([]ChangeLogRecord, error) {
	where := `(table_name = ? AND entity_ref = ?)`
	return r.list(ctx, where, []any{string(kind), entityID}, opts)
}

// Purge deletes a record by id. Zero affected rows means another request
// already purged it.
func (r *changeLogRepository) Purge(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM change_logs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("purging change log %s: %w", id, err)
	}
	return nil
}

// list appends the optional filters to the scope predicate and runs the query.
func (r *changeLogRepository) list(ctx context.Context, scope string, args []any, opts ListOptions) ([]ChangeLogRecord, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("listing change logs: limit must be positive, got %d", opts.Limit)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + changeLogColumns + ` FROM change_logs WHERE ` + scope)

	if len(opts.Kinds) > 0 {
		sb.WriteString(` AND table_name IN (` + placeholders(len(opts.Kinds)) + `)`)
		for _, k := range opts.Kinds {
			args = append(args, string(k))
		}
	}
	if opts.ChangedBy != "" {
		sb.WriteString(` AND changed_by = ?`)
		args = append(args, opts.ChangedBy)
	}

	// id breaks ties between rows written in the same microsecond.
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ?`)
	args = append(args, opts.Limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing change logs: %w", err)
	}
	defer rows.Close()

	return scanChangeLogRows(rows)
}

// scanChangeLogRows scans change_logs rows. Expects the columns of
// changeLogColumns in order.
func scanChangeLogRows(rows *sql.Rows) ([]ChangeLogRecord, error) {
	var records []ChangeLogRecord
	for rows.Next() {
		var rec ChangeLogRecord
		var table, op string
		var oldJSON, newJSON, changedBy sql.NullString
		if err := rows.Scan(&rec.ID, &table, &op, &oldJSON, &newJSON, &changedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning change log: %w", err)
		}
		rec.TableName = Kind(table)
		rec.Operation = Operation(op)
		if changedBy.Valid && changedBy.String != "" {
			actor := changedBy.String
			rec.ChangedBy = &actor
		}

		var err error
		if rec.OldImage, err = parseImage(oldJSON); err != nil {
			return nil, fmt.Errorf("change log %s old_data: %w", rec.ID, err)
		}
		if rec.NewImage, err = parseImage(newJSON); err != nil {
			return nil, fmt.Errorf("change log %s new_data: %w", rec.ID, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change logs: %w", err)
	}

	return records, nil
}

// parseImage decodes a nullable JSON column. SQL NULL and JSON null both
// yield a nil image.
func parseImage(s sql.NullString) (Image, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var img Image
	if err := json.Unmarshal([]byte(s.String), &img); err != nil {
		return nil, err
	}
	return img, nil
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// --- Membership ---

// ProjectRef is a project the acting user belongs to.
type ProjectRef struct {
	ID   string
	Name string
}

// MembershipRepository answers "which projects can this user see".
type MembershipRepository interface {
	// ListProjectsByUser returns the user's projects, most recently created
	// first.
	ListProjectsByUser(ctx context.Context, userID string) ([]ProjectRef, error)

	// IsMember reports whether the user belongs to the project.
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}

type membershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new repository backed by the given DB pool.
func NewMembershipRepository(db *sql.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// ListProjectsByUser joins project_members to projects for the user.
func (r *membershipRepository) ListProjectsByUser(ctx context.Context, userID string) ([]ProjectRef, error) {
	query := `SELECT p.id, p.name
	          FROM project_members pm
	          INNER JOIN projects p ON p.id = pm.project_id
	          WHERE pm.user_id = ?
	          ORDER BY p.created_at DESC, p.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRef
	for rows.Next() {
		var p ProjectRef
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scanning user project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// IsMember checks for a project_members row.
func (r *membershipRepository) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?)`,
		projectID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking project membership: %w", err)
	}
	return exists, nil
}
