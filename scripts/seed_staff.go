// scripts/seed_staff.go
// Seeds one account per staff role for a fresh environment.
package main

import (
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vedantsingh72/Gatepass/config"
	"github.com/vedantsingh72/Gatepass/database"
	"github.com/vedantsingh72/Gatepass/models"
)

func main() {
	cfg := config.Load()
	database.Connect(cfg)

	seeds := []models.User{
		{Role: models.RoleDepartment, Identifier: "CSE-OFFICE", Name: "CSE Department Office", Department: "CSE"},
		{Role: models.RoleAcademic, Identifier: "ACAD-01", Name: "Academic Office"},
		{Role: models.RoleHostel, Identifier: "HOSTEL-01", Name: "Hostel Office"},
		{Role: models.RoleGate, Identifier: "GATE-MAIN", Name: "Main Gate"},
	}

	password := "changeme"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	for _, u := range seeds {
		var existing models.User
		err := database.DB.Where("role = ? AND identifier = ?", u.Role, u.Identifier).First(&existing).Error
		if err == nil {
			fmt.Printf("skip %s/%s (exists)\n", u.Role, u.Identifier)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to query users: %v", err)
		}
		u.Password = string(hashed)
		u.Verified = true
		if err := database.DB.Create(&u).Error; err != nil {
			log.Fatalf("failed to insert %s: %v", u.Identifier, err)
		}
		fmt.Printf("created %s/%s (password %q, change it)\n", u.Role, u.Identifier, password)
	}
}
