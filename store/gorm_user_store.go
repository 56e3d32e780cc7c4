package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vedantsingh72/Gatepass/models"
)

type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore { return &GormUserStore{db: db} }

func (s *GormUserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormUserStore) ListStudentsByDepartment(ctx context.Context, department string) ([]models.User, error) {
	tx := s.db.WithContext(ctx).Where("role = ?", models.RoleStudent)
	if department != "" {
		tx = tx.Where("department = ?", department)
	}
	var out []models.User
	err := tx.Order("id ASC").Find(&out).Error
	return out, err
}
