package models

import "time"

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ApprovalRecord is one approver's decision on a pass. Appended, never
// mutated; at most one per (pass, role) — resubmission after rejection
// means a new pass, not a new record.
type ApprovalRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PassID     string    `json:"pass_id" gorm:"type:uuid;not null;uniqueIndex:idx_approvals_pass_role"`
	Role       string    `json:"role" gorm:"size:20;not null;uniqueIndex:idx_approvals_pass_role"`
	ApproverID uint      `json:"approver_id" gorm:"not null"`
	Decision   string    `json:"decision" gorm:"size:10;not null"` // approve|reject
	Comment    string    `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}
