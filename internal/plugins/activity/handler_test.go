package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
)

// mockActivityService implements ActivityService for handler tests.
type mockActivityService struct {
	dashboardFn func(ctx context.Context, actorID string) ([]EnrichedLogEntry, error)
	allFn       func(ctx context.Context, actorID string, kinds []Kind, limit int) (*FeedPage, error)
	projectFn   func(ctx context.Context, actorID, projectID string) ([]EnrichedLogEntry, error)
	taskFn      func(ctx context.Context, actorID, taskID string) ([]EnrichedLogEntry, error)
	entityFn    func(ctx context.Context, actorID string, kind Kind, entityID string) ([]EnrichedLogEntry, error)
}

func (m *mockActivityService) DashboardFeed(ctx context.Context, actorID string) ([]EnrichedLogEntry, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, actorID)
	}
	return []EnrichedLogEntry{}, nil
}

func (m *mockActivityService) AllActivity(ctx context.Context, actorID string, kinds []Kind, limit int) (*FeedPage, error) {
	if m.allFn != nil {
		return m.allFn(ctx, actorID, kinds, limit)
	}
	return &FeedPage{Entries: []EnrichedLogEntry{}}, nil
}

func (m *mockActivityService) ProjectFeed(ctx context.Context, actorID, projectID string) ([]EnrichedLogEntry, error) {
	if m.projectFn != nil {
		return m.projectFn(ctx, actorID, projectID)
	}
	return []EnrichedLogEntry{}, nil
}

func (m *mockActivityService) TaskFeed(ctx context.Context, actorID, taskID string) ([]EnrichedLogEntry, error) {
	if m.taskFn != nil {
		return m.taskFn(ctx, actorID, taskID)
	}
	return []EnrichedLogEntry{}, nil
}

func (m *mockActivityService) EntityFeed(ctx context.Context, actorID string, kind Kind, entityID string) ([]EnrichedLogEntry, error) {
	if m.entityFn != nil {
		return m.entityFn(ctx, actorID, kind, entityID)
	}
	return []EnrichedLogEntry{}, nil
}

const validID = "6f1c2a8e-3b4d-4e5f-9a0b-1c2d3e4f5a6b"

// newContext builds an echo context as RequireAuth would leave it.
func newContext(target, actorID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actorID != "" {
		c.Set("auth_user_id", actorID)
	}
	return c, rec
}

func TestHandler_AllActivityParsesQuery(t *testing.T) {
	svc := &mockActivityService{
		allFn: func(ctx context.Context, actorID string, kinds []Kind, limit int) (*FeedPage, error) {
			if actorID != "u-1" {
				t.Errorf("expected actor u-1, got %s", actorID)
			}
			if len(kinds) != 3 || kinds[0] != KindTasks || kinds[1] != KindComments || kinds[2] != KindFiles {
				t.Errorf("unexpected kinds %v", kinds)
			}
			if limit != 20 {
				t.Errorf("expected limit 20, got %d", limit)
			}
			return &FeedPage{Entries: []EnrichedLogEntry{}, HasMore: true, Limit: limit}, nil
		},
	}
	c, rec := newContext("/api/v1/activity?tables=tasks,comments&tables=files&limit=20", "u-1")

	if err := NewHandler(svc).AllActivity(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Entries []json.RawMessage `json:"entries"`
		HasMore bool              `json:"has_more"`
		Limit   int               `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !body.HasMore || body.Limit != 20 || body.Entries == nil {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_AllActivityRejectsBadInput(t *testing.T) {
	h := NewHandler(&mockActivityService{})
	for _, target := range []string{
		"/api/v1/activity?tables=secrets",
		"/api/v1/activity?limit=abc",
		"/api/v1/activity?limit=-1",
		"/api/v1/activity?limit=0",
	} {
		c, _ := newContext(target, "u-1")
		assertAppError(t, h.AllActivity(c), 400)
	}
}

func TestHandler_ProjectActivity(t *testing.T) {
	svc := &mockActivityService{
		projectFn: func(ctx context.Context, actorID, projectID string) ([]EnrichedLogEntry, error) {
			if projectID != validID {
				t.Errorf("expected project %s, got %s", validID, projectID)
			}
			return []EnrichedLogEntry{{
				ChangeLogRecord: ChangeLogRecord{ID: "log-1", TableName: KindMilestones, Operation: OpInsert},
				Details:         MilestoneDetails{MilestoneID: "m-1", Name: "Launch"},
			}}, nil
		},
	}
	c, rec := newContext("/", "u-1")
	c.SetParamNames("id")
	c.SetParamValues(validID)

	if err := NewHandler(svc).ProjectActivity(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Entries []struct {
			ID      string         `json:"id"`
			Details map[string]any `json:"details"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].ID != "log-1" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if body.Entries[0].Details["name"] != "Launch" {
		t.Errorf("expected milestone details in body, got %v", body.Entries[0].Details)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	c, _ := newContext("/", "u-1")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	assertAppError(t, NewHandler(&mockActivityService{}).TaskActivity(c), 400)
}

func TestHandler_EntityActivityPassesKind(t *testing.T) {
	var gotKind Kind
	svc := &mockActivityService{
		entityFn: func(ctx context.Context, actorID string, kind Kind, entityID string) ([]EnrichedLogEntry, error) {
			gotKind = kind
			return nil, apperror.NewForbidden("nope")
		},
	}
	c, _ := newContext("/", "u-1")
	c.SetParamNames("id")
	c.SetParamValues(validID)

	assertAppError(t, NewHandler(svc).EntityActivity(KindUsers)(c), 403)
	if gotKind != KindUsers {
		t.Errorf("expected kind users, got %s", gotKind)
	}
}

func TestHandler_MissingActor(t *testing.T) {
	c, _ := newContext("/api/v1/activity/dashboard", "")
	assertAppError(t, NewHandler(&mockActivityService{}).Dashboard(c), 401)
}
