package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedantsingh72/Gatepass/models"
)

func newPass(t *testing.T, s *MemoryStore, state string) *models.Pass {
	t.Helper()
	p := &models.Pass{
		ID:        fmt.Sprintf("pass-%d", time.Now().UnixNano()),
		StudentID: 7,
		PassType:  models.PassOutstation,
		Reason:    "going home",
		FromDate:  "2026-03-10",
		ToDate:    "2026-03-12",
		State:     state,
	}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestAdvanceRecordsApproval(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingDept)

	rec := models.ApprovalRecord{Role: models.RoleDepartment, ApproverID: 21, Decision: models.DecisionApprove}
	got, err := s.Advance(ctx, p.ID, models.StatePendingDept, models.StatePendingAcademic, &rec)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingAcademic, got.State)
	require.Len(t, got.Approvals, 1)
	assert.Equal(t, models.RoleDepartment, got.Approvals[0].Role)
	assert.Equal(t, uint(21), got.Approvals[0].ApproverID)
}

func TestAdvanceStaleStateConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingAcademic)

	rec := models.ApprovalRecord{Role: models.RoleDepartment, ApproverID: 21, Decision: models.DecisionApprove}
	got, err := s.Advance(ctx, p.ID, models.StatePendingDept, models.StatePendingAcademic, &rec)
	require.ErrorIs(t, err, ErrConflict)
	// the caller gets the authoritative row to report
	require.NotNil(t, got)
	assert.Equal(t, models.StatePendingAcademic, got.State)

	_, err = s.Advance(ctx, "no-such-pass", models.StatePendingDept, models.StatePendingAcademic, &rec)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentDecisionsOneWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingDept)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := models.ApprovalRecord{Role: models.RoleDepartment, ApproverID: uint(100 + i), Decision: models.DecisionApprove}
			_, errs[i] = s.Advance(ctx, p.ID, models.StatePendingDept, models.StatePendingAcademic, &rec)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingAcademic, got.State)
	assert.Len(t, got.Approvals, 1)
}

func TestFinalizeIssuesWithToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingAcademic)

	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	rec := models.ApprovalRecord{Role: models.RoleAcademic, ApproverID: 33, Decision: models.DecisionApprove}
	got, err := s.Finalize(ctx, p.ID, models.StatePendingAcademic, &rec, "GP1.x.0.deadbeef", at)
	require.NoError(t, err)

	// the pass never surfaces as approved-without-token
	assert.Equal(t, models.StateIssued, got.State)
	require.NotNil(t, got.QRToken)
	assert.Equal(t, "GP1.x.0.deadbeef", *got.QRToken)
	require.NotNil(t, got.IssuedAt)
	assert.Equal(t, at, *got.IssuedAt)
	assert.Len(t, got.Approvals, 1)

	// a second finalize is a conflict, not a second token
	_, err = s.Finalize(ctx, p.ID, models.StatePendingAcademic, &rec, "GP1.x.0.other", at)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRejectIsTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingDept)

	rec := models.ApprovalRecord{Role: models.RoleDepartment, ApproverID: 21, Decision: models.DecisionReject, Comment: "dates clash with exams"}
	got, err := s.Reject(ctx, p.ID, models.StatePendingDept, &rec, "dates clash with exams")
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, got.State)
	assert.Equal(t, "dates clash with exams", got.RejectReason)

	// nothing moves a rejected pass
	rec2 := models.ApprovalRecord{Role: models.RoleDepartment, ApproverID: 21, Decision: models.DecisionApprove}
	cur, err := s.Advance(ctx, p.ID, models.StatePendingDept, models.StatePendingAcademic, &rec2)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.StateRejected, cur.State)
}

func TestConsumeExactlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingAcademic)

	token := "GP1." + p.ID + ".1700000000.abcd"
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	rec := models.ApprovalRecord{Role: models.RoleAcademic, ApproverID: 33, Decision: models.DecisionApprove}
	_, err := s.Finalize(ctx, p.ID, models.StatePendingAcademic, &rec, token, at)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Consume(ctx, p.ID, token, at.Add(time.Hour))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateUsed, got.State)
	require.NotNil(t, got.UsedAt)
}

func TestGetByToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingAcademic)

	// nothing resolves before issuance
	_, err := s.GetByToken(ctx, "GP1.anything")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := models.ApprovalRecord{Role: models.RoleAcademic, ApproverID: 33, Decision: models.DecisionApprove}
	_, err = s.Finalize(ctx, p.ID, models.StatePendingAcademic, &rec, "GP1.tok", time.Now())
	require.NoError(t, err)

	got, err := s.GetByToken(ctx, "GP1.tok")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.GetByToken(ctx, "GP1.other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeWrongToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingAcademic)

	at := time.Now()
	rec := models.ApprovalRecord{Role: models.RoleAcademic, ApproverID: 33, Decision: models.DecisionApprove}
	_, err := s.Finalize(ctx, p.ID, models.StatePendingAcademic, &rec, "GP1.right", at)
	require.NoError(t, err)

	cur, err := s.Consume(ctx, p.ID, "GP1.wrong", at)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.StateIssued, cur.State) // untouched
}

func TestExpireConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPass(t, s, models.StatePendingDept)

	got, err := s.Expire(ctx, p.ID, models.StatePendingDept)
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, got.State)

	// idempotent callers observe a conflict carrying the final state
	cur, err := s.Expire(ctx, p.ID, models.StatePendingDept)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.StateExpired, cur.State)
}

func TestListByStateFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := newPass(t, s, models.StatePendingDept)
	b := &models.Pass{
		ID: "pass-b", StudentID: 8, PassType: models.PassOutstation,
		Reason: "sister's wedding", FromDate: "2026-04-01", ToDate: "2026-04-05",
		State: models.StatePendingDept,
	}
	require.NoError(t, s.Create(ctx, b))

	rows, err := s.ListByState(ctx, models.StatePendingDept, PassFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.ListByState(ctx, models.StatePendingDept, PassFilter{StudentID: a.StudentID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].ID)

	rows, err = s.ListByState(ctx, models.StatePendingDept, PassFilter{Query: "wedding"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pass-b", rows[0].ID)

	// overlap filter
	rows, err = s.ListByState(ctx, models.StatePendingDept, PassFilter{From: "2026-04-04", To: "2026-04-10"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pass-b", rows[0].ID)
}

func TestListCompletedOnlyTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	used := &models.Pass{ID: "u1", StudentID: 7, PassType: models.PassLocal, FromDate: "2026-01-01", ToDate: "2026-01-02", State: models.StateUsed}
	open := &models.Pass{ID: "o1", StudentID: 7, PassType: models.PassLocal, FromDate: "2026-02-01", ToDate: "2026-02-02", State: models.StateIssued}
	other := &models.Pass{ID: "x1", StudentID: 99, PassType: models.PassLocal, FromDate: "2026-01-01", ToDate: "2026-01-02", State: models.StateUsed}
	for _, p := range []*models.Pass{used, open, other} {
		require.NoError(t, s.Create(ctx, p))
	}

	rows, err := s.ListCompleted(ctx, []uint{7})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].ID)
}
