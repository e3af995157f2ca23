package activity

import (
	"encoding/json"
	"fmt"
)

// Typed views of the trigger images. Only the columns the resolvers read are
// declared; the trigger may add more without breaking decoding.

type taskImage struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	MilestoneID  *string `json:"milestone_id"`
	ParentTaskID *string `json:"parent_task_id"`
}

type projectImage struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type userImage struct {
	ID string `json:"id"`
}

type milestoneImage struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

type commentImage struct {
	ID       string  `json:"id"`
	TaskID   string  `json:"task_id"`
	AuthorID *string `json:"author_id"`
	Comment  string  `json:"comment"`
}

type fileImage struct {
	ID       string  `json:"id"`
	TaskID   *string `json:"task_id"`
	FileName string  `json:"file_name"`
	MimeType string  `json:"mime_type"`
	Size     int64   `json:"size"`
}

type memberImage struct {
	ProjectID     string  `json:"project_id"`
	UserID        string  `json:"user_id"`
	Role          string  `json:"role"`
	InviterUserID *string `json:"inviter_user_id"`
}

type assignmentImage struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	UserID     string  `json:"user_id"`
	AssignedBy *string `json:"assigned_by"`
}

type invitationImage struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	InviterUserID *string `json:"inviter_user_id"`
}

type taskLabelImage struct {
	TaskID  string `json:"task_id"`
	LabelID string `json:"label_id"`
}

type subtaskImage struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	SubtaskID string `json:"subtask_id"`
}

// decodeImage converts an untyped image into its typed view. A nil image
// decodes to the zero value.
func decodeImage[T any](img Image) (T, error) {
	var out T
	if img == nil {
		return out, nil
	}
	raw, err := json.Marshal(img)
	if err != nil {
		return out, fmt.Errorf("encoding image: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %T image: %w", out, err)
	}
	return out, nil
}

// deref returns the pointed-to string or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
