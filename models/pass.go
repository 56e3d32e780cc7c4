package models

import "time"

const (
	PassOutstation = "outstation"
	PassLocal      = "local"
)

// Pass states. Dates compare lexicographically as YYYY-MM-DD strings.
const (
	StateDraft           = "draft"
	StatePendingDept     = "pending_dept"
	StatePendingAcademic = "pending_academic"
	StatePendingHostel   = "pending_hostel"
	StateApproved        = "approved"
	StateIssued          = "issued"
	StateUsed            = "used"
	StateRejected        = "rejected"
	StateExpired         = "expired"
)

const DateLayout = "2006-01-02"

type Pass struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	StudentID uint   `json:"student_id" gorm:"index;not null"`
	PassType  string `json:"passType" gorm:"size:20;not null"`
	Reason    string `json:"reason" gorm:"type:text"`
	FromDate  string `json:"fromDate" gorm:"size:10;not null"` // YYYY-MM-DD
	ToDate    string `json:"toDate" gorm:"size:10;not null"`   // YYYY-MM-DD
	State     string `json:"state" gorm:"size:24;not null;index"`

	// set on issuance; cleared never — a pass holds at most one live token
	QRToken  *string    `json:"-" gorm:"uniqueIndex;size:128"`
	IssuedAt *time.Time `json:"issuedAt,omitempty"`
	UsedAt   *time.Time `json:"usedAt,omitempty"`

	RejectReason string `json:"rejectReason,omitempty" gorm:"type:text"`

	// append-only audit trail, retained after terminal states
	Approvals []ApprovalRecord `json:"approvals,omitempty" gorm:"foreignKey:PassID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is one hop of the approval chain: the role allowed to decide the
// current stage and the state an approval moves the pass to.
type Step struct {
	Role string
	Next string
}

// approvalFlow is the single lookup table (passType, state) -> (role, next).
// The chain is fixed by the pass's stored type at creation; it is never
// re-derived from configuration.
var approvalFlow = map[string]map[string]Step{
	PassOutstation: {
		StateDraft:           {Role: RoleStudent, Next: StatePendingDept},
		StatePendingDept:     {Role: RoleDepartment, Next: StatePendingAcademic},
		StatePendingAcademic: {Role: RoleAcademic, Next: StateApproved},
	},
	PassLocal: {
		StateDraft:         {Role: RoleStudent, Next: StatePendingHostel},
		StatePendingHostel: {Role: RoleHostel, Next: StateApproved},
	},
}

func ValidPassType(t string) bool { return t == PassOutstation || t == PassLocal }

// InitialState is where a freshly submitted pass of the given type starts.
func InitialState(passType string) (string, bool) {
	step, ok := approvalFlow[passType][StateDraft]
	if !ok {
		return "", false
	}
	return step.Next, true
}

// NextStep returns the pending-stage step for the pass, or ok=false when the
// pass is not awaiting a decision (terminal, issued, unknown type...).
func NextStep(passType, state string) (Step, bool) {
	if !PendingState(state) {
		return Step{}, false
	}
	step, ok := approvalFlow[passType][state]
	return step, ok
}

// PendingStateForRole maps an approver role to the stage it decides.
func PendingStateForRole(role string) (string, bool) {
	switch role {
	case RoleDepartment:
		return StatePendingDept, true
	case RoleAcademic:
		return StatePendingAcademic, true
	case RoleHostel:
		return StatePendingHostel, true
	}
	return "", false
}

func PendingState(s string) bool {
	return s == StatePendingDept || s == StatePendingAcademic || s == StatePendingHostel
}

// TerminalState: no further transitions permitted.
func TerminalState(s string) bool {
	return s == StateUsed || s == StateRejected || s == StateExpired
}

// Expirable: states from which elapsing toDate moves the pass to expired.
func Expirable(s string) bool {
	return PendingState(s) || s == StateApproved || s == StateIssued
}

// PastWindow reports whether today (YYYY-MM-DD) is after the pass window.
func (p *Pass) PastWindow(today string) bool { return today > p.ToDate }

// InWindow reports whether today falls within [FromDate, ToDate], inclusive
// on both ends (a scan exactly on toDate is valid).
func (p *Pass) InWindow(today string) bool {
	return today >= p.FromDate && today <= p.ToDate
}
