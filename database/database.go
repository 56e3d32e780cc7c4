package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vedantsingh72/Gatepass/config"
	"github.com/vedantsingh72/Gatepass/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	DB = db

	if err := DB.AutoMigrate(
		&models.User{},
		&models.Pass{},
		&models.ApprovalRecord{},
		&models.EmailOTP{},
	); err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
}
