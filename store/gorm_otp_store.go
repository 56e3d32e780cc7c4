package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vedantsingh72/Gatepass/models"
)

type GormOTPStore struct {
	db *gorm.DB
}

func NewGormOTPStore(db *gorm.DB) *GormOTPStore { return &GormOTPStore{db: db} }

// ReplaceOTP upserts on the unique email column in one statement, so a
// pending row never blocks a resend.
func (s *GormOTPStore) ReplaceOTP(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	rec := models.EmailOTP{
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "attempts"}),
		}).
		Create(&rec).Error
}

func (s *GormOTPStore) GetOTP(ctx context.Context, email string) (*models.EmailOTP, error) {
	var rec models.EmailOTP
	err := s.db.WithContext(ctx).First(&rec, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormOTPStore) FailOTP(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Model(&models.EmailOTP{}).
		Where("email = ?", email).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

func (s *GormOTPStore) DeleteOTP(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.EmailOTP{}).Error
}
