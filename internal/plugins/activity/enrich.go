package activity

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
	"github.com/FarkasZalan/Novo-sub000/internal/sanitize"
)

// resolverFunc builds the kind-specific details of a surviving record. It
// only reads through env.lookup and never writes.
type resolverFunc func(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error)

// resolveEnv is what a resolver may use: the live-state lookups and the
// acting user for "You" substitution.
type resolveEnv struct {
	lookup  Lookup
	actorID string
}

// sensitiveUserFields never leave the engine, even though the trigger
// captures them for change detection.
var sensitiveUserFields = []string{"password", "premium_session_id"}

// commentPreviewRunes caps the comment text carried in a feed entry.
const commentPreviewRunes = 280

// Enrich resolves display context for one record that survived
// reconciliation. Missing referents become "Deleted" or "Unknown"; any
// other lookup failure is returned.
func Enrich(ctx context.Context, lookup Lookup, actorID string, rec *ChangeLogRecord) (*EnrichedLogEntry, error) {
	ks, ok := registry[rec.TableName]
	if !ok {
		return nil, fmt.Errorf("no resolver for table %q", rec.TableName)
	}
	env := &resolveEnv{lookup: lookup, actorID: actorID}

	details, err := ks.resolve(ctx, env, rec)
	if err != nil {
		return nil, fmt.Errorf("resolving %s record %s: %w", rec.TableName, rec.ID, err)
	}

	actor, err := env.person(ctx, rec.actorID())
	if err != nil {
		return nil, fmt.Errorf("resolving actor of %s: %w", rec.ID, err)
	}

	entry := &EnrichedLogEntry{
		ChangeLogRecord: *rec,
		Actor:           actor,
		ProjectID:       rec.ProjectID(),
		Details:         details,
	}
	if entry.ProjectID != "" {
		if entry.ProjectName, err = env.projectName(ctx, entry.ProjectID); err != nil {
			return nil, fmt.Errorf("resolving project of %s: %w", rec.ID, err)
		}
	}
	if rec.TableName == KindUsers {
		entry.OldImage = redact(rec.OldImage)
		entry.NewImage = redact(rec.NewImage)
	}
	return entry, nil
}

// redact returns a copy of img without sensitive user columns.
func redact(img Image) Image {
	if img == nil {
		return nil
	}
	out := maps.Clone(img)
	for _, f := range sensitiveUserFields {
		delete(out, f)
	}
	return out
}

// --- Shared label helpers ---

// person resolves a user id into a display reference. Blank name falls back
// to email and blank email to name. Ids that are empty or no longer exist
// become "Unknown".
func (env *resolveEnv) person(ctx context.Context, id string) (Person, error) {
	unknown := Person{ID: id, Name: unknownLabel, Email: unknownLabel, Display: unknownLabel}
	if id == "" {
		return unknown, nil
	}

	u, err := env.lookup.FindUser(ctx, id)
	if apperror.IsNotFound(err) {
		return unknown, nil
	}
	if err != nil {
		return Person{}, err
	}

	name := strings.TrimSpace(u.Name)
	email := strings.TrimSpace(u.Email)
	if name == "" {
		name = email
	}
	if email == "" {
		email = name
	}
	if name == "" {
		name, email = unknownLabel, unknownLabel
	}

	p := Person{ID: id, Name: name, Email: email, Display: name}
	if id == env.actorID {
		p.Display = youLabel
	}
	return p, nil
}

// taskTitle returns the live title of a task, "Deleted" if it is gone and
// "" if id is empty.
func (env *resolveEnv) taskTitle(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	t, err := env.lookup.FindTask(ctx, id)
	if apperror.IsNotFound(err) {
		return deletedLabel, nil
	}
	if err != nil {
		return "", err
	}
	return t.Title, nil
}

func (env *resolveEnv) milestoneName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	m, err := env.lookup.FindMilestone(ctx, id)
	if apperror.IsNotFound(err) {
		return deletedLabel, nil
	}
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func (env *resolveEnv) labelName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	l, err := env.lookup.FindLabel(ctx, id)
	if apperror.IsNotFound(err) {
		return deletedLabel, nil
	}
	if err != nil {
		return "", err
	}
	return l.Name, nil
}

func (env *resolveEnv) projectName(ctx context.Context, id string) (string, error) {
	p, err := env.lookup.FindProject(ctx, id)
	if apperror.IsNotFound(err) {
		return deletedLabel, nil
	}
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// --- Resolvers ---

// resolveAssignment resolves both people and the task. For inserts and
// updates the live assignment row wins over the image, which can be stale
// when the assignment was re-created by another request.
func resolveAssignment(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[assignmentImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	assignedBy := deref(img.AssignedBy)

	if rec.Operation != OpDelete {
		current, err := env.lookup.FindAssignment(ctx, img.TaskID, img.UserID)
		switch {
		case err == nil:
			if current.AssignedBy != "" {
				assignedBy = current.AssignedBy
			}
		case !apperror.IsNotFound(err):
			return nil, err
		}
	}

	d := AssignmentDetails{TaskID: img.TaskID}
	if d.TaskTitle, err = env.taskTitle(ctx, img.TaskID); err != nil {
		return nil, err
	}
	if d.User, err = env.person(ctx, img.UserID); err != nil {
		return nil, err
	}
	if d.AssignedBy, err = env.person(ctx, assignedBy); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveComment shows the comment as a plain-text preview; the stored body
// is editor HTML.
func resolveComment(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[commentImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := CommentDetails{
		CommentID: img.ID,
		TaskID:    img.TaskID,
		Comment:   sanitize.Truncate(sanitize.Text(img.Comment), commentPreviewRunes),
	}
	if d.TaskTitle, err = env.taskTitle(ctx, img.TaskID); err != nil {
		return nil, err
	}
	if d.Author, err = env.person(ctx, deref(img.AuthorID)); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveMilestone needs no lookups; the image is self-describing.
func resolveMilestone(_ context.Context, _ *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[milestoneImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	return MilestoneDetails{
		MilestoneID: img.ID,
		Name:        img.Name,
		Description: img.Description,
		DueDate:     img.DueDate,
	}, nil
}

// resolveFile adds the task title for task attachments only.
func resolveFile(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[fileImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := FileDetails{
		FileID:   img.ID,
		FileName: img.FileName,
		MimeType: img.MimeType,
		Size:     img.Size,
		TaskID:   deref(img.TaskID),
	}
	if d.TaskTitle, err = env.taskTitle(ctx, d.TaskID); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveMember resolves the member and the inviter. The owner bootstrap
// row is normally purged before it gets here, but it is still described
// correctly if it is not.
func resolveMember(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[memberImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	inviterID := deref(img.InviterUserID)
	d := MemberDetails{
		Role:       img.Role,
		SelfJoined: inviterID != "" && inviterID == img.UserID,
	}
	if d.Member, err = env.person(ctx, img.UserID); err != nil {
		return nil, err
	}
	if d.Inviter, err = env.person(ctx, inviterID); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveInvitation uses the image; the invitee may not have an account.
func resolveInvitation(_ context.Context, _ *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[invitationImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	return InvitationDetails{
		InvitationID:  img.ID,
		Email:         img.Email,
		Role:          img.Role,
		InviterUserID: deref(img.InviterUserID),
	}, nil
}

func resolveTaskLabel(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[taskLabelImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := TaskLabelDetails{TaskID: img.TaskID, LabelID: img.LabelID}
	if d.TaskTitle, err = env.taskTitle(ctx, img.TaskID); err != nil {
		return nil, err
	}
	if d.LabelName, err = env.labelName(ctx, img.LabelID); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveProject compares name and description before and after.
func resolveProject(_ context.Context, _ *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	cur, err := decodeImage[projectImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := ProjectDetails{Name: cur.Name, Description: cur.Description}
	if rec.Operation == OpUpdate {
		prev, err := decodeImage[projectImage](rec.OldImage)
		if err != nil {
			return nil, err
		}
		d.PreviousName = prev.Name
		d.PreviousDescription = prev.Description
		d.NameChanged = prev.Name != cur.Name
		d.DescriptionChanged = deref(prev.Description) != deref(cur.Description)
	}
	return d, nil
}

// resolveTask resolves the milestone and parent task. A deleted task cannot
// be looked up, so its own title is shown as "Deleted"; the milestone and
// parent are still attempted.
func resolveTask(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[taskImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := TaskDetails{
		TaskID:       img.ID,
		Title:        img.Title,
		Status:       img.Status,
		Priority:     img.Priority,
		MilestoneID:  deref(img.MilestoneID),
		ParentTaskID: deref(img.ParentTaskID),
	}
	if rec.Operation == OpDelete {
		d.Title = deletedLabel
	}
	if d.MilestoneName, err = env.milestoneName(ctx, d.MilestoneID); err != nil {
		return nil, err
	}
	if d.ParentTaskTitle, err = env.taskTitle(ctx, d.ParentTaskID); err != nil {
		return nil, err
	}
	return d, nil
}

func resolveSubtask(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[subtaskImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := SubtaskDetails{TaskID: img.TaskID, SubtaskID: img.SubtaskID}
	if d.TaskTitle, err = env.taskTitle(ctx, img.TaskID); err != nil {
		return nil, err
	}
	if d.SubtaskTitle, err = env.taskTitle(ctx, img.SubtaskID); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveUser shows the account's current name and email from the users
// table, never values from the image.
func resolveUser(ctx context.Context, env *resolveEnv, rec *ChangeLogRecord) (Details, error) {
	img, err := decodeImage[userImage](rec.Subject())
	if err != nil {
		return nil, err
	}
	d := UserDetails{}
	if d.User, err = env.person(ctx, img.ID); err != nil {
		return nil, err
	}
	if rec.Operation == OpUpdate {
		d.ChangedFields = changedFields(rec.OldImage, rec.NewImage, userCriticalFields)
	}
	return d, nil
}
