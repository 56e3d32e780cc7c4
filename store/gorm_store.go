package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vedantsingh72/Gatepass/models"
)

// GormStore is the Postgres-backed PassStore. Conditional writes are plain
// UPDATE ... WHERE id = ? AND state = ?; RowsAffected == 0 means the caller
// held a stale view.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Create(ctx context.Context, p *models.Pass) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Pass, error) {
	var p models.Pass
	err := s.db.WithContext(ctx).Preload("Approvals").First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) GetByToken(ctx context.Context, token string) (*models.Pass, error) {
	var p models.Pass
	err := s.db.WithContext(ctx).First(&p, "qr_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) ListByState(ctx context.Context, state string, f PassFilter) ([]models.Pass, error) {
	tx := s.db.WithContext(ctx).Model(&models.Pass{}).Where("state = ?", state)

	if f.StudentID != 0 {
		tx = tx.Where("student_id = ?", f.StudentID)
	}
	if f.Query != "" {
		tx = tx.Where("reason ILIKE ?", "%"+f.Query+"%")
	}
	if f.From != "" && f.To != "" {
		// overlap: (from_date <= to) AND (to_date >= from)
		tx = tx.Where("from_date <= ? AND to_date >= ?", f.To, f.From)
	}

	page, size := f.Page, f.Size
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var rows []models.Pass
	err := tx.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListForStudent(ctx context.Context, studentID uint) ([]models.Pass, error) {
	var rows []models.Pass
	err := s.db.WithContext(ctx).
		Preload("Approvals").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListCompleted(ctx context.Context, studentIDs []uint) ([]models.Pass, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var rows []models.Pass
	err := s.db.WithContext(ctx).
		Where("student_id IN ?", studentIDs).
		Where("state IN ?", []string{models.StateUsed, models.StateRejected, models.StateExpired}).
		Find(&rows).Error
	return rows, err
}

// errStale is internal to the transaction closures below.
var errStale = errors.New("zero rows matched")

func (s *GormStore) Advance(ctx context.Context, id, from, to string, rec *models.ApprovalRecord) (*models.Pass, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Pass{}).
			Where("id = ? AND state = ?", id, from).
			Update("state", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		rec.PassID = id
		return tx.Create(rec).Error
	})
	return s.afterWrite(ctx, id, err)
}

func (s *GormStore) Finalize(ctx context.Context, id, from string, rec *models.ApprovalRecord, token string, at time.Time) (*models.Pass, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the approved hop; issuance fires on this transition
		res := tx.Model(&models.Pass{}).
			Where("id = ? AND state = ?", id, from).
			Update("state", models.StateApproved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		rec.PassID = id
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		// approved -> issued, atomically with the token
		res = tx.Model(&models.Pass{}).
			Where("id = ? AND state = ?", id, models.StateApproved).
			Updates(map[string]any{
				"state":     models.StateIssued,
				"qr_token":  token,
				"issued_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		return nil
	})
	return s.afterWrite(ctx, id, err)
}

func (s *GormStore) Reject(ctx context.Context, id, from string, rec *models.ApprovalRecord, reason string) (*models.Pass, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Pass{}).
			Where("id = ? AND state = ?", id, from).
			Updates(map[string]any{
				"state":         models.StateRejected,
				"reject_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		rec.PassID = id
		return tx.Create(rec).Error
	})
	return s.afterWrite(ctx, id, err)
}

func (s *GormStore) Consume(ctx context.Context, id, token string, at time.Time) (*models.Pass, error) {
	res := s.db.WithContext(ctx).Model(&models.Pass{}).
		Where("id = ? AND state = ? AND qr_token = ?", id, models.StateIssued, token).
		Updates(map[string]any{
			"state":   models.StateUsed,
			"used_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return s.afterWrite(ctx, id, errStale)
	}
	return s.afterWrite(ctx, id, nil)
}

func (s *GormStore) Expire(ctx context.Context, id, from string) (*models.Pass, error) {
	res := s.db.WithContext(ctx).Model(&models.Pass{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", models.StateExpired)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return s.afterWrite(ctx, id, errStale)
	}
	return s.afterWrite(ctx, id, nil)
}

// afterWrite re-reads the row and classifies a stale write: row gone ->
// ErrNotFound; row present in some other state -> current row + ErrConflict.
func (s *GormStore) afterWrite(ctx context.Context, id string, werr error) (*models.Pass, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err // ErrNotFound covers the stale case too
	}
	if werr == nil {
		return p, nil
	}
	if errors.Is(werr, errStale) {
		return p, ErrConflict
	}
	return nil, werr
}
