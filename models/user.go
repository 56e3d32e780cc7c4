package models

import "time"

// Roles the client logs in as. The five roles are fixed; there is no admin
// surface in this system.
const (
	RoleStudent    = "student"
	RoleDepartment = "department"
	RoleAcademic   = "academic"
	RoleHostel     = "hostel"
	RoleGate       = "gate"
)

func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleDepartment, RoleAcademic, RoleHostel, RoleGate:
		return true
	}
	return false
}

func StaffRole(r string) bool {
	return r == RoleDepartment || r == RoleAcademic || r == RoleHostel || r == RoleGate
}

// User is the principal record for every role. Identifier is the login id
// the client asks for per role (roll number, department id, office id, gate id).
type User struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Role       string `json:"role" gorm:"size:20;not null;uniqueIndex:idx_users_role_identifier"`
	Identifier string `json:"identifier" gorm:"size:60;not null;uniqueIndex:idx_users_role_identifier"`
	Name       string `json:"name" gorm:"size:120;not null"`
	Email      string `json:"email" gorm:"size:120;index"`
	Password   string `json:"-" gorm:"not null"` // bcrypt hash

	// student profile fields; empty for staff
	Department string `json:"department,omitempty" gorm:"size:60"`
	Year       int    `json:"year,omitempty"`
	Hostel     string `json:"hostel,omitempty" gorm:"size:60"`

	Verified bool `json:"verified" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
