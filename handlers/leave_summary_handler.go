package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vedantsingh72/Gatepass/leavestats"
	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/store"
)

// LeaveSummaryHandler serves the aggregator projection. Reads only.
type LeaveSummaryHandler struct {
	Passes store.PassStore
	Users  store.UserStore
	Cfg    leavestats.Config
	Now    func() time.Time
}

func NewLeaveSummaryHandler(passes store.PassStore, users store.UserStore, cfg leavestats.Config) *LeaveSummaryHandler {
	return &LeaveSummaryHandler{Passes: passes, Users: users, Cfg: cfg, Now: time.Now}
}

// GET /students/leave-summary?department=
// Department callers see their own department; academic may pass any (or
// none for the whole cohort).
func (h *LeaveSummaryHandler) List(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}

	ctx := c.Request().Context()
	dept := strings.TrimSpace(c.QueryParam("department"))
	if getRole(c) == models.RoleDepartment {
		caller, err := h.Users.GetUser(ctx, uid)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
		}
		dept = caller.Department
	}

	students, err := h.Users.ListStudentsByDepartment(ctx, dept)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	ids := make([]uint, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	passes, err := h.Passes.ListCompleted(ctx, ids)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, leavestats.Summarize(students, passes, h.Cfg, h.Now()))
}

// GET /students/:id/leave-summary
func (h *LeaveSummaryHandler) Get(c echo.Context) error {
	sid := atoiOr(c.Param("id"), 0)
	if sid <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR"})
	}

	ctx := c.Request().Context()
	student, err := h.Users.GetUser(ctx, uint(sid))
	if errors.Is(err, store.ErrNotFound) || (err == nil && student.Role != models.RoleStudent) {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	passes, err := h.Passes.ListCompleted(ctx, []uint{student.ID})
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	rows := leavestats.Summarize([]models.User{*student}, passes, h.Cfg, h.Now())
	return c.JSON(http.StatusOK, rows[0])
}
