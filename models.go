package registration

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ApprovalStatus tracks the staff-approval half of the workflow. It is
// only meaningful for approval-gated policy variants.
type ApprovalStatus = string

const (
	// ApprovalNotRequired is used by variants without a staff gate
	ApprovalNotRequired ApprovalStatus = "not_required"
	// ApprovalPending means the account awaits a staff decision
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved means a staff member accepted the account
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRejected is terminal, the account never activates
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValidApprovalStatus checks the status is one of the predefined values
func IsValidApprovalStatus(s ApprovalStatus) bool {
	switch s {
	case ApprovalNotRequired, ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string         `bun:"password_hash" json:"password_hash,omitempty"`
	IsActive      bool           `bun:"is_active" json:"is_active,omitempty"`
	IsStaff       bool           `bun:"is_staff" json:"is_staff,omitempty"`
	DateJoined    *time.Time     `bun:"date_joined,nullzero,default:current_timestamp" json:"date_joined,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// RegistrationProfile links a user to its activation state. Exactly one
// profile exists per registered user and it is destroyed with the user.
type RegistrationProfile struct {
	bun.BaseModel  `bun:"table:registration_profiles,alias:regp"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         *uuid.UUID `bun:"user_id,notnull,unique" json:"user_id,omitempty"`
	User           *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	ActivationKey  string     `bun:"activation_key,notnull" json:"activation_key,omitempty"`
	Activated      bool       `bun:"activated" json:"activated,omitempty"`
	ApprovalStatus string     `bun:"approval_status,notnull" json:"approval_status,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// KeyConsumed reports whether the activation key has already been spent.
func (p *RegistrationProfile) KeyConsumed() bool {
	return p.ActivationKey == ActivatedSentinel
}

// EnsureApprovalStatus backfills the status for records created before
// the approval column existed.
func (p *RegistrationProfile) EnsureApprovalStatus() {
	if p.ApprovalStatus == "" {
		p.ApprovalStatus = ApprovalNotRequired
	}
}

// MarkActivated returns a record snapshot that flips the activated flag
// and burns the key. The transition is monotonic, never reversed.
func MarkActivated(id uuid.UUID) *RegistrationProfile {
	p := &RegistrationProfile{}
	p.ID = id
	p.Activated = true
	p.ActivationKey = ActivatedSentinel
	return p
}
