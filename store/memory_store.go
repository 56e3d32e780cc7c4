package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vedantsingh72/Gatepass/models"
)

// MemoryStore mirrors the GormStore's conditional-update semantics behind a
// mutex. It backs the tests and carries no extra guarantees the SQL store
// does not have.
type MemoryStore struct {
	mu     sync.Mutex
	passes map[string]*models.Pass
	users  map[uint]*models.User
	otps   map[string]*models.EmailOTP
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passes: map[string]*models.Pass{},
		users:  map[uint]*models.User{},
		otps:   map[string]*models.EmailOTP{},
	}
}

func clonePass(p *models.Pass) *models.Pass {
	cp := *p
	cp.Approvals = append([]models.ApprovalRecord(nil), p.Approvals...)
	if p.QRToken != nil {
		t := *p.QRToken
		cp.QRToken = &t
	}
	if p.IssuedAt != nil {
		at := *p.IssuedAt
		cp.IssuedAt = &at
	}
	if p.UsedAt != nil {
		at := *p.UsedAt
		cp.UsedAt = &at
	}
	return &cp
}

func (s *MemoryStore) Create(_ context.Context, p *models.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.passes[p.ID] = clonePass(p)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePass(p), nil
}

func (s *MemoryStore) GetByToken(_ context.Context, token string) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.passes {
		if p.QRToken != nil && *p.QRToken == token {
			return clonePass(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListByState(_ context.Context, state string, f PassFilter) ([]models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Pass
	for _, p := range s.passes {
		if p.State != state {
			continue
		}
		if f.StudentID != 0 && p.StudentID != f.StudentID {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Reason), strings.ToLower(f.Query)) {
			continue
		}
		if f.From != "" && f.To != "" && !(p.FromDate <= f.To && p.ToDate >= f.From) {
			continue
		}
		rows = append(rows, *clonePass(p))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

func (s *MemoryStore) ListForStudent(_ context.Context, studentID uint) ([]models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Pass
	for _, p := range s.passes {
		if p.StudentID == studentID {
			rows = append(rows, *clonePass(p))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (s *MemoryStore) ListCompleted(_ context.Context, studentIDs []uint) ([]models.Pass, error) {
	want := map[uint]bool{}
	for _, id := range studentIDs {
		want[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Pass
	for _, p := range s.passes {
		if want[p.StudentID] && models.TerminalState(p.State) {
			rows = append(rows, *clonePass(p))
		}
	}
	return rows, nil
}

// conditional returns the live row when its state matches, or classifies the
// failure the way afterWrite does in the SQL store.
func (s *MemoryStore) conditional(id, from string) (*models.Pass, *models.Pass, error) {
	p, ok := s.passes[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if p.State != from {
		return nil, clonePass(p), ErrConflict
	}
	return p, nil, nil
}

func (s *MemoryStore) Advance(_ context.Context, id, from, to string, rec *models.ApprovalRecord) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, cur, err := s.conditional(id, from)
	if err != nil {
		return cur, err
	}
	p.State = to
	rec.PassID = id
	rec.CreatedAt = time.Now()
	p.Approvals = append(p.Approvals, *rec)
	p.UpdatedAt = time.Now()
	return clonePass(p), nil
}

func (s *MemoryStore) Finalize(_ context.Context, id, from string, rec *models.ApprovalRecord, token string, at time.Time) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, cur, err := s.conditional(id, from)
	if err != nil {
		return cur, err
	}
	rec.PassID = id
	rec.CreatedAt = at
	p.Approvals = append(p.Approvals, *rec)
	p.State = models.StateIssued
	p.QRToken = &token
	issuedAt := at
	p.IssuedAt = &issuedAt
	p.UpdatedAt = at
	return clonePass(p), nil
}

func (s *MemoryStore) Reject(_ context.Context, id, from string, rec *models.ApprovalRecord, reason string) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, cur, err := s.conditional(id, from)
	if err != nil {
		return cur, err
	}
	p.State = models.StateRejected
	p.RejectReason = reason
	rec.PassID = id
	rec.CreatedAt = time.Now()
	p.Approvals = append(p.Approvals, *rec)
	p.UpdatedAt = time.Now()
	return clonePass(p), nil
}

func (s *MemoryStore) Consume(_ context.Context, id, token string, at time.Time) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.State != models.StateIssued || p.QRToken == nil || *p.QRToken != token {
		return clonePass(p), ErrConflict
	}
	p.State = models.StateUsed
	usedAt := at
	p.UsedAt = &usedAt
	p.UpdatedAt = at
	return clonePass(p), nil
}

func (s *MemoryStore) Expire(_ context.Context, id, from string) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, cur, err := s.conditional(id, from)
	if err != nil {
		return cur, err
	}
	p.State = models.StateExpired
	p.UpdatedAt = time.Now()
	return clonePass(p), nil
}

/* ---- UserStore side (tests and the leave-summary flow) ---- */

func (s *MemoryStore) PutUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *MemoryStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) ListStudentsByDepartment(_ context.Context, department string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.Role != models.RoleStudent {
			continue
		}
		if department != "" && u.Department != department {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

/* ---- OTPStore side ---- */

func (s *MemoryStore) ReplaceOTP(_ context.Context, email, codeHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[email] = &models.EmailOTP{
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) GetOTP(_ context.Context, email string) (*models.EmailOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.otps[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) FailOTP(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.otps[email]; ok {
		rec.Attempts++
	}
	return nil
}

func (s *MemoryStore) DeleteOTP(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, email)
	return nil
}
