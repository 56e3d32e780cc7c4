package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/qr"
	"github.com/vedantsingh72/Gatepass/store"
)

// request builds an echo context carrying an authenticated caller, the way
// RequireAuth would leave it.
func request(t *testing.T, method, path, body string, uid uint, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uid)
	c.Set("role", role)
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func fixedNow() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }

func newHandler(s *store.MemoryStore) *PassHandler {
	h := NewPassHandler(s)
	h.Now = fixedNow
	return h
}

// createPass drives POST /passes and returns the stored row.
func createPass(t *testing.T, h *PassHandler, uid uint, passType, from, to string) models.Pass {
	t.Helper()
	body := `{"passType":"` + passType + `","reason":"family visit","fromDate":"` + from + `","toDate":"` + to + `"}`
	c, rec := request(t, http.MethodPost, "/passes", body, uid, models.RoleStudent)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p models.Pass
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotEmpty(t, p.ID)
	return p
}

// decide drives POST /passes/:id/decision as the given approver.
func decide(t *testing.T, h *PassHandler, passID string, uid uint, role, decision, reason string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"decision":"` + decision + `","reason":"` + reason + `"}`
	c, rec := request(t, http.MethodPost, "/passes/"+passID+"/decision", body, uid, role)
	c.SetParamNames("id")
	c.SetParamValues(passID)
	require.NoError(t, h.Decide(c))
	return rec
}

func TestCreateRejectsInvertedDates(t *testing.T) {
	h := newHandler(store.NewMemoryStore())

	body := `{"passType":"outstation","reason":"trip","fromDate":"2026-03-12","toDate":"2026-03-10"}`
	c, rec := request(t, http.MethodPost, "/passes", body, 7, models.RoleStudent)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["error"])
}

func TestCreateValidatesPayload(t *testing.T) {
	h := newHandler(store.NewMemoryStore())

	for _, body := range []string{
		`{"passType":"weekend","reason":"x","fromDate":"2026-03-10","toDate":"2026-03-11"}`,
		`{"passType":"local","reason":"","fromDate":"2026-03-10","toDate":"2026-03-11"}`,
		`{"passType":"local","reason":"x","fromDate":"10-03-2026","toDate":"2026-03-11"}`,
	} {
		c, rec := request(t, http.MethodPost, "/passes", body, 7, models.RoleStudent)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["error"], body)
	}
}

func TestCreateStartsAtFirstStage(t *testing.T) {
	h := newHandler(store.NewMemoryStore())

	out := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")
	assert.Equal(t, models.StatePendingDept, out.State)

	loc := createPass(t, h, 7, models.PassLocal, "2026-03-10", "2026-03-10")
	assert.Equal(t, models.StatePendingHostel, loc.State)
}

func TestOutstationRejectMidChain(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	p := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")

	// department approves
	rec := decide(t, h, p.ID, 21, models.RoleDepartment, "approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// academic rejects with a reason
	rec = decide(t, h, p.ID, 33, models.RoleAcademic, "reject", "attendance shortfall")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, got.State)
	assert.Equal(t, "attendance shortfall", got.RejectReason)
	assert.Len(t, got.Approvals, 2)

	// any further decision is refused with the final state
	rec = decide(t, h, p.ID, 33, models.RoleAcademic, "approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CONFLICT", body["error"])
	assert.Equal(t, models.StateRejected, body["state"])
}

func TestLocalPassRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	p := createPass(t, h, 7, models.PassLocal, "2026-03-09", "2026-03-10")

	rec := decide(t, h, p.ID, 44, models.RoleHostel, "approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// single approval issues directly, token and timestamp set
	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateIssued, got.State)
	require.NotNil(t, got.QRToken)
	require.NotNil(t, got.IssuedAt)

	// gate consumes it through the scan endpoint
	s.PutUser(&models.User{ID: 7, Role: models.RoleStudent, Name: "Asha", Identifier: "21CS001"})
	engine := qr.NewEngine(s)
	engine.Now = fixedNow
	sh := NewScanHandler(engine, s)

	scanBody := `{"token":"` + *got.QRToken + `"}`
	c, scanRec := request(t, http.MethodPost, "/scan", scanBody, 55, models.RoleGate)
	require.NoError(t, sh.Scan(c))
	require.Equal(t, http.StatusOK, scanRec.Code, scanRec.Body.String())
	out := decode(t, scanRec)
	assert.Equal(t, models.PassLocal, out["passType"])
	assert.Equal(t, models.StateUsed, out["state"])
	assert.NotNil(t, out["usedAt"])
	assert.NotContains(t, out, "isUsed")
	student, _ := out["student"].(map[string]any)
	require.NotNil(t, student)
	assert.Equal(t, "21CS001", student["rollNo"])

	// the same code the second time around
	c, scanRec = request(t, http.MethodPost, "/scan", scanBody, 55, models.RoleGate)
	require.NoError(t, sh.Scan(c))
	assert.Equal(t, http.StatusConflict, scanRec.Code)
	assert.Equal(t, "ALREADY_USED", decode(t, scanRec)["error"])
}

func TestDecideWrongRoleForbidden(t *testing.T) {
	h := newHandler(store.NewMemoryStore())
	p := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")

	// hostel has no stage on the outstation chain
	rec := decide(t, h, p.ID, 44, models.RoleHostel, "approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// academic is next-next, not next
	rec = decide(t, h, p.ID, 33, models.RoleAcademic, "approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecideUnknownPass(t *testing.T) {
	h := newHandler(store.NewMemoryStore())
	rec := decide(t, h, "no-such-id", 21, models.RoleDepartment, "approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["error"])
}

func TestDecideOnElapsedPassExpiresIt(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	p := createPass(t, h, 7, models.PassOutstation, "2026-03-01", "2026-03-05")

	// now is 2026-03-09, past the window
	rec := decide(t, h, p.ID, 21, models.RoleDepartment, "approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CONFLICT", body["error"])
	assert.Equal(t, models.StateExpired, body["state"])

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, got.State)
}

func TestDecideStaleApproverConflicts(t *testing.T) {
	h := newHandler(store.NewMemoryStore())
	p := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")

	rec := decide(t, h, p.ID, 21, models.RoleDepartment, "approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// a second department member acting on a stale list view
	rec = decide(t, h, p.ID, 22, models.RoleDepartment, "approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CONFLICT", body["error"])
	assert.Equal(t, models.StatePendingAcademic, body["state"])
}

func TestListPendingScopedToRoleStage(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	out := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")
	createPass(t, h, 8, models.PassLocal, "2026-03-10", "2026-03-10")

	c, rec := request(t, http.MethodGet, "/passes", "", 21, models.RoleDepartment)
	require.NoError(t, h.ListPending(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []models.Pass
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, out.ID, rows[0].ID)

	// gate staff cannot list approval queues
	c, rec = request(t, http.MethodGet, "/passes", "", 55, models.RoleGate)
	require.NoError(t, h.ListPending(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListPendingRetiresElapsedRows(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	stale := createPass(t, h, 7, models.PassOutstation, "2026-03-01", "2026-03-05")
	live := createPass(t, h, 7, models.PassOutstation, "2026-03-09", "2026-03-12")

	c, rec := request(t, http.MethodGet, "/passes", "", 21, models.RoleDepartment)
	require.NoError(t, h.ListPending(c))

	var rows []models.Pass
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, live.ID, rows[0].ID)

	got, err := s.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, got.State)
}

func TestQRImageOwnerOnly(t *testing.T) {
	s := store.NewMemoryStore()
	h := newHandler(s)
	p := createPass(t, h, 7, models.PassLocal, "2026-03-09", "2026-03-10")
	decide(t, h, p.ID, 44, models.RoleHostel, "approve", "")

	ask := func(uid uint) (echo.Context, *httptest.ResponseRecorder) {
		c, rec := request(t, http.MethodGet, "/passes/"+p.ID+"/qr", "", uid, models.RoleStudent)
		c.SetParamNames("id")
		c.SetParamValues(p.ID)
		return c, rec
	}

	c, rec := ask(8)
	require.NoError(t, h.QRImage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = ask(7)
	require.NoError(t, h.QRImage(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestQRImageBeforeIssue(t *testing.T) {
	h := newHandler(store.NewMemoryStore())
	p := createPass(t, h, 7, models.PassOutstation, "2026-03-10", "2026-03-12")

	c, rec := request(t, http.MethodGet, "/passes/"+p.ID+"/qr", "", 7, models.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, h.QRImage(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_ISSUED", decode(t, rec)["error"])
}
