package activity

import (
	"github.com/labstack/echo/v4"

	"github.com/FarkasZalan/Novo-sub000/internal/plugins/auth"
)

// RegisterRoutes sets up the activity feed routes on the API group. Every
// route requires authentication; extra middleware (rate limiting) runs after
// authentication so it can key on the user.
func RegisterRoutes(api *echo.Group, h *Handler, authSvc auth.AuthService, mw ...echo.MiddlewareFunc) {
	g := api.Group("", append([]echo.MiddlewareFunc{auth.RequireAuth(authSvc)}, mw...)...)

	g.GET("/activity", h.AllActivity)
	g.GET("/activity/dashboard", h.Dashboard)

	g.GET("/projects/:id/activity", h.ProjectActivity)
	g.GET("/tasks/:id/activity", h.TaskActivity)

	g.GET("/comments/:id/activity", h.EntityActivity(KindComments))
	g.GET("/milestones/:id/activity", h.EntityActivity(KindMilestones))
	g.GET("/users/:id/activity", h.EntityActivity(KindUsers))
}
