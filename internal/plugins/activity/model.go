// Package activity turns the raw rows written by the change-log triggers into
// activity feeds. Each row is reconciled first (no-op updates and
// internally generated side effects are purged from the log), then the
// survivors are enriched with display context resolved from the live tables
// (user names, task titles, milestone names) and assembled into the
// dashboard, all-activity, project, task and entity feeds.
//
// The engine never writes change-log rows. It only reads them and deletes
// the ones it classifies as noise.
package activity

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
)

// --- Tracked Kinds ---

// Kind is the name of a table tracked by the change-log triggers. It is the
// discriminator of a ChangeLogRecord.
type Kind string

const (
	KindTasks       Kind = "tasks"
	KindProjects    Kind = "projects"
	KindUsers       Kind = "users"
	KindMilestones  Kind = "milestones"
	KindComments    Kind = "comments"
	KindFiles       Kind = "files"
	KindMembers     Kind = "project_members"
	KindAssignments Kind = "assignments"
	KindInvitations Kind = "pending_project_invitations"
	KindTaskLabels  Kind = "task_labels"
	KindSubtasks    Kind = "subtasks"
)

// AllKinds lists every tracked table in a stable order.
var AllKinds = []Kind{
	KindTasks, KindProjects, KindUsers, KindMilestones, KindComments, KindFiles,
	KindMembers, KindAssignments, KindInvitations, KindTaskLabels, KindSubtasks,
}

// TaskKinds are the kinds whose rows can reference a task and therefore
// appear in a task feed.
var TaskKinds = []Kind{KindAssignments, KindFiles, KindTaskLabels, KindTasks}

// Valid reports whether k is one of the tracked tables.
func (k Kind) Valid() bool {
	return slices.Contains(AllKinds, k)
}

// ParseKinds parses table filters as sent by clients: each value may be a
// single table name or a comma-separated list. Blank segments are ignored
// and duplicates collapse. Unknown names are rejected.
func ParseKinds(values []string) ([]Kind, error) {
	var kinds []Kind
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			k := Kind(name)
			if !k.Valid() {
				return nil, apperror.NewBadRequest(fmt.Sprintf("unknown table %q", name))
			}
			if !slices.Contains(kinds, k) {
				kinds = append(kinds, k)
			}
		}
	}
	return kinds, nil
}

// Operation is the kind of mutation a ChangeLogRecord captured.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// --- Raw Records ---

// Image is an untyped row snapshot as stored in old_data/new_data.
type Image map[string]any

// String returns the value at key as a string. Missing keys and JSON nulls
// yield "". Numbers are formatted without a trailing ".0".
func (img Image) String(key string) string {
	v, ok := img[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// ChangeLogRecord is one row of change_logs: a single insert, update or
// delete on a tracked table. OldImage is nil for INSERT and NewImage is nil
// for DELETE. ChangedBy is nil for system-initiated changes.
type ChangeLogRecord struct {
	ID        string    `json:"id"`
	TableName Kind      `json:"table_name"`
	Operation Operation `json:"operation"`
	OldImage  Image     `json:"old_data"`
	NewImage  Image     `json:"new_data"`
	ChangedBy *string   `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Subject returns the image that describes the record: the prior state for
// deletions, the resulting state otherwise.
func (r *ChangeLogRecord) Subject() Image {
	if r.Operation == OpDelete {
		return r.OldImage
	}
	return r.NewImage
}

// ProjectID returns the owning project of the changed row. Project rows own
// themselves; every other tracked row carries project_id in its image.
func (r *ChangeLogRecord) ProjectID() string {
	img := r.Subject()
	if r.TableName == KindProjects {
		return img.String("id")
	}
	return img.String("project_id")
}

// actorID returns the acting user id or "" for system changes.
func (r *ChangeLogRecord) actorID() string {
	if r.ChangedBy == nil {
		return ""
	}
	return *r.ChangedBy
}

// ListOptions narrows a change-log query. Zero values mean "no filter",
// except Limit which must be positive.
type ListOptions struct {
	// Kinds restricts results to these tables.
	Kinds []Kind

	// ChangedBy restricts results to changes made by this user.
	ChangedBy string

	Limit int
}

// --- Enriched Output ---

// Display fallbacks for referents that no longer exist.
const (
	// deletedLabel replaces titles and names of deleted tasks, milestones,
	// labels and projects.
	deletedLabel = "Deleted"

	// unknownLabel replaces names and emails of people that cannot be resolved.
	unknownLabel = "Unknown"

	// youLabel is shown instead of the acting user's own name.
	youLabel = "You"
)

// Person is a display-ready user reference.
type Person struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Display string `json:"display"`
}

// Details is the kind-specific enrichment payload of an entry. The concrete
// type is determined by the entry's table name.
type Details interface {
	kind() Kind
}

// EnrichedLogEntry is a reconciled change-log record with its display
// context. It exists only for the duration of one feed request.
type EnrichedLogEntry struct {
	ChangeLogRecord

	// Actor is the resolved ChangedBy user, "Unknown" for system changes.
	Actor Person `json:"actor"`

	ProjectID   string `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`

	Details Details `json:"details"`
}

// FeedPage is a bounded feed with an approximate continuation signal.
// HasMore is true when the page is exactly Limit entries long; that also
// happens when the last page is exactly full.
type FeedPage struct {
	Entries []EnrichedLogEntry `json:"entries"`
	HasMore bool               `json:"has_more"`
	Limit   int                `json:"limit"`
}

// --- Kind-specific Details ---

// AssignmentDetails describes a task assignment change.
type AssignmentDetails struct {
	TaskID     string `json:"task_id"`
	TaskTitle  string `json:"task_title"`
	User       Person `json:"user"`
	AssignedBy Person `json:"assigned_by"`
}

// CommentDetails describes a comment change.
type CommentDetails struct {
	CommentID string `json:"comment_id"`
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Comment   string `json:"comment"`
	Author    Person `json:"author"`
}

// MilestoneDetails is built from the milestone's own image.
type MilestoneDetails struct {
	MilestoneID string  `json:"milestone_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// FileDetails describes an uploaded or removed file. TaskTitle is empty for
// project-level files.
type FileDetails struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type,omitempty"`
	Size      int64  `json:"size"`
	TaskID    string `json:"task_id,omitempty"`
	TaskTitle string `json:"task_title,omitempty"`
}

// MemberDetails describes a membership change. SelfJoined marks the owner
// bootstrap row where the member invited themselves.
type MemberDetails struct {
	Member     Person `json:"member"`
	Inviter    Person `json:"inviter"`
	Role       string `json:"role"`
	SelfJoined bool   `json:"self_joined"`
}

// InvitationDetails is built from the invitation's own image.
type InvitationDetails struct {
	InvitationID  string `json:"invitation_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	InviterUserID string `json:"inviter_user_id,omitempty"`
}

// TaskLabelDetails describes a label attached to or removed from a task.
type TaskLabelDetails struct {
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	LabelID   string `json:"label_id"`
	LabelName string `json:"label_name"`
}

// ProjectDetails carries the name and description before and after the
// change. Previous values are only set for updates.
type ProjectDetails struct {
	Name                string  `json:"name"`
	Description         *string `json:"description,omitempty"`
	PreviousName        string  `json:"previous_name,omitempty"`
	PreviousDescription *string `json:"previous_description,omitempty"`
	NameChanged         bool    `json:"name_changed"`
	DescriptionChanged  bool    `json:"description_changed"`
}

// TaskDetails describes a task change. Title is "Deleted" for deletions.
type TaskDetails struct {
	TaskID          string `json:"task_id"`
	Title           string `json:"title"`
	Status          string `json:"status,omitempty"`
	Priority        string `json:"priority,omitempty"`
	MilestoneID     string `json:"milestone_id,omitempty"`
	MilestoneName   string `json:"milestone_name,omitempty"`
	ParentTaskID    string `json:"parent_task_id,omitempty"`
	ParentTaskTitle string `json:"parent_task_title,omitempty"`
}

// SubtaskDetails describes a parent/child task link.
type SubtaskDetails struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	SubtaskID    string `json:"subtask_id"`
	SubtaskTitle string `json:"subtask_title"`
}

// UserDetails shows the affected account with its current name and email.
// ChangedFields names the account fields an update touched, never values.
type UserDetails struct {
	User          Person   `json:"user"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}

func (AssignmentDetails) kind() Kind { return KindAssignments }
func (CommentDetails) kind() Kind    { return KindComments }
func (MilestoneDetails) kind() Kind  { return KindMilestones }
func (FileDetails) kind() Kind       { return KindFiles }
func (MemberDetails) kind() Kind     { return KindMembers }
func (InvitationDetails) kind() Kind { return KindInvitations }
func (TaskLabelDetails) kind() Kind  { return KindTaskLabels }
func (ProjectDetails) kind() Kind    { return KindProjects }
func (TaskDetails) kind() Kind       { return KindTasks }
func (SubtaskDetails) kind() Kind    { return KindSubtasks }
func (UserDetails) kind() Kind       { return KindUsers }
