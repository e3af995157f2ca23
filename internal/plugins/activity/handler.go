package activity

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
	"github.com/FarkasZalan/Novo-sub000/internal/plugins/auth"
)

// Handler serves the activity feeds as JSON. Handlers are thin: read the
// actor and parameters, call the service, write the response.
type Handler struct {
	service ActivityService
}

// NewHandler creates a new activity handler.
func NewHandler(service ActivityService) *Handler {
	return &Handler{service: service}
}

// entriesResponse is the body of every unpaginated feed.
type entriesResponse struct {
	Entries []EnrichedLogEntry `json:"entries"`
}

// Dashboard returns recent activity grouped by project (GET /activity/dashboard).
func (h *Handler) Dashboard(c echo.Context) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	entries, err := h.service.DashboardFeed(c.Request().Context(), actorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entriesResponse{Entries: entries})
}

// AllActivity returns one page across all of the actor's projects
// (GET /activity?tables=tasks,comments&limit=20). tables may be repeated.
func (h *Handler) AllActivity(c echo.Context) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}

	kinds, err := ParseKinds(c.QueryParams()["tables"])
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return apperror.NewBadRequest("limit must be a positive integer")
		}
	}

	page, err := h.service.AllActivity(c.Request().Context(), actorID, kinds, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// ProjectActivity returns a project's feed (GET /projects/:id/activity).
func (h *Handler) ProjectActivity(c echo.Context) error {
	actorID, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ProjectFeed(c.Request().Context(), actorID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entriesResponse{Entries: entries})
}

// TaskActivity returns a task's feed (GET /tasks/:id/activity).
func (h *Handler) TaskActivity(c echo.Context) error {
	actorID, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.TaskFeed(c.Request().Context(), actorID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entriesResponse{Entries: entries})
}

// EntityActivity returns a handler for the history of one entity of kind,
// e.g. GET /comments/:id/activity.
func (h *Handler) EntityActivity(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		actorID, id, err := actorAndID(c)
		if err != nil {
			return err
		}
		entries, err := h.service.EntityFeed(c.Request().Context(), actorID, kind, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, entriesResponse{Entries: entries})
	}
}

// actor returns the authenticated user id. RequireAuth guarantees it on
// these routes; a missing id means the middleware was not applied.
func actor(c echo.Context) (string, error) {
	id := auth.GetUserID(c)
	if id == "" {
		return "", apperror.NewUnauthorized("authentication required")
	}
	return id, nil
}

// actorAndID returns the actor and the :id route parameter, which must be a UUID.
func actorAndID(c echo.Context) (string, string, error) {
	actorID, err := actor(c)
	if err != nil {
		return "", "", err
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", "", apperror.NewBadRequest("invalid id")
	}
	return actorID, id, nil
}
