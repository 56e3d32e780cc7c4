package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/qr"
	"github.com/vedantsingh72/Gatepass/store"
)

var validate = validator.New()

// PassHandler drives the approval state machine over the pass store.
// Now is injectable so the date-window tests can pin "today".
type PassHandler struct {
	Passes store.PassStore
	Now    func() time.Time
}

func NewPassHandler(passes store.PassStore) *PassHandler {
	return &PassHandler{Passes: passes, Now: time.Now}
}

type CreatePassReq struct {
	PassType string `json:"passType" validate:"required,oneof=outstation local"`
	Reason   string `json:"reason" validate:"required"`
	FromDate string `json:"fromDate" validate:"required,datetime=2006-01-02"`
	ToDate   string `json:"toDate" validate:"required,datetime=2006-01-02"`
}

type DecisionReq struct {
	Decision string `json:"decision"` // approve|reject
	Reason   string `json:"reason"`   // optional, kept on reject
}

// POST /passes
func (h *PassHandler) Create(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}

	var req CreatePassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "detail": err.Error()})
	}
	// rejected before any state change
	if req.FromDate > req.ToDate {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "detail": "fromDate after toDate"})
	}

	initial, ok := models.InitialState(req.PassType)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "detail": "unknown pass type"})
	}

	p := models.Pass{
		ID:        uuid.NewString(),
		StudentID: uid,
		PassType:  req.PassType,
		Reason:    strings.TrimSpace(req.Reason),
		FromDate:  req.FromDate,
		ToDate:    req.ToDate,
		State:     initial, // approval chain fixed here, by pass type
	}
	if err := h.Passes.Create(c.Request().Context(), &p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, p)
}

// GET /passes/mine
func (h *PassHandler) ListMine(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}
	rows, err := h.Passes.ListForStudent(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}

// GET /passes?state=pending&q=&from=&to=&page=&size=
// Lists the stage awaiting the caller's role; stale rows past their window
// are retired on the way out.
func (h *PassHandler) ListPending(c echo.Context) error {
	role := getRole(c)
	stage, ok := models.PendingStateForRole(role)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
	}

	f := store.PassFilter{
		Query: strings.TrimSpace(c.QueryParam("q")),
		From:  strings.TrimSpace(c.QueryParam("from")),
		To:    strings.TrimSpace(c.QueryParam("to")),
		Page:  atoiOr(c.QueryParam("page"), 1),
		Size:  atoiOr(c.QueryParam("size"), 20),
	}
	if sid := atoiOr(c.QueryParam("studentId"), 0); sid > 0 {
		f.StudentID = uint(sid)
	}

	ctx := c.Request().Context()
	rows, err := h.Passes.ListByState(ctx, stage, f)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	today := h.Now().Format(models.DateLayout)
	out := make([]models.Pass, 0, len(rows))
	for _, p := range rows {
		if p.PastWindow(today) {
			h.expire(ctx, &p)
			continue
		}
		out = append(out, p)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /passes/:id/decision
func (h *PassHandler) Decide(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}
	role := getRole(c)

	var req DecisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "detail": "decision must be approve or reject"})
	}

	ctx := c.Request().Context()
	p, err := h.Passes.Get(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	// window check first: a decision on an elapsed pass retires it
	now := h.Now()
	if p.PastWindow(now.Format(models.DateLayout)) && models.Expirable(p.State) {
		h.expire(ctx, p)
		return c.JSON(http.StatusConflict, map[string]any{"error": "CONFLICT", "state": models.StateExpired})
	}

	step, ok := models.NextStep(p.PassType, p.State)
	if !ok {
		// terminal or already issued: the decision window is closed
		return c.JSON(http.StatusConflict, map[string]any{"error": "CONFLICT", "state": p.State})
	}
	if step.Role != role {
		return c.JSON(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
	}

	rec := models.ApprovalRecord{
		Role:       role,
		ApproverID: uid,
		Decision:   decision,
		Comment:    strings.TrimSpace(req.Reason),
	}

	var updated *models.Pass
	switch {
	case decision == models.DecisionReject:
		updated, err = h.Passes.Reject(ctx, p.ID, p.State, &rec, strings.TrimSpace(req.Reason))
	case step.Next == models.StateApproved:
		// final approval: mint and issue atomically with the record
		var token string
		token, err = qr.Mint(p.ID, now)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "TOKEN_GEN_FAILED"})
		}
		updated, err = h.Passes.Finalize(ctx, p.ID, p.State, &rec, token, now)
	default:
		updated, err = h.Passes.Advance(ctx, p.ID, p.State, step.Next, &rec)
	}

	if errors.Is(err, store.ErrConflict) {
		// already processed; show the authoritative state, never retry
		state := ""
		if updated != nil {
			state = updated.State
		}
		return c.JSON(http.StatusConflict, map[string]any{"error": "CONFLICT", "state": state})
	}
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "pass": updated})
}

// GET /passes/:id/qr — PNG of the live token, owner only.
func (h *PassHandler) QRImage(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}

	p, err := h.Passes.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	if p.StudentID != uid {
		return c.JSON(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
	}
	if p.State != models.StateIssued || p.QRToken == nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "NOT_ISSUED", "state": p.State})
	}

	png, err := qrcode.Encode(*p.QRToken, qrcode.Medium, 256)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "QR_ENCODE_FAILED"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// expire is best effort; a racing write means someone else already moved it.
func (h *PassHandler) expire(ctx context.Context, p *models.Pass) {
	_, _ = h.Passes.Expire(ctx, p.ID, p.State)
}
