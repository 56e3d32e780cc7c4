package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vedantsingh72/Gatepass/qr"
	"github.com/vedantsingh72/Gatepass/store"
)

type ScanHandler struct {
	Engine *qr.Engine
	Users  store.UserStore
}

func NewScanHandler(engine *qr.Engine, users store.UserStore) *ScanHandler {
	return &ScanHandler{Engine: engine, Users: users}
}

type ScanReq struct {
	Token string `json:"token"`
}

// POST /scan
// Outcomes are final: NOT_FOUND, EXPIRED and ALREADY_USED must not be retried.
func (h *ScanHandler) Scan(c echo.Context) error {
	var req ScanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	ctx := c.Request().Context()
	p, err := h.Engine.Validate(ctx, token)
	switch {
	case errors.Is(err, qr.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	case errors.Is(err, qr.ErrExpired):
		return c.JSON(http.StatusGone, map[string]any{"error": "EXPIRED"})
	case errors.Is(err, qr.ErrAlreadyUsed):
		return c.JSON(http.StatusConflict, map[string]any{"error": "ALREADY_USED"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "SCAN_FAILED"})
	}

	// summary for the gate operator's display; a 200 means this scan is the
	// one that consumed the pass, anything prior surfaced as an error above
	out := map[string]any{
		"passType": p.PassType,
		"fromDate": p.FromDate,
		"toDate":   p.ToDate,
		"state":    p.State,
		"usedAt":   p.UsedAt,
	}
	if student, err := h.Users.GetUser(ctx, p.StudentID); err == nil {
		out["student"] = map[string]any{
			"name":   student.Name,
			"rollNo": student.Identifier,
		}
	}
	return c.JSON(http.StatusOK, out)
}
