package model

import "time"

// AccountClass distinguishes the three structurally identical account tables.
// Token claims carry the class next to a class-specific id key so that an
// admin token can never be mistaken for a supplier or mobile-user token.
type AccountClass string

const (
	ClassAdmin    AccountClass = "admin"
	ClassSupplier AccountClass = "supplier"
	ClassMobile   AccountClass = "user"
)

// ParseAccountClass maps a route segment ("admins", "suppliers", "users" or
// the singular forms used in token claims) onto an AccountClass.  The second
// return value is false for anything else.
func ParseAccountClass(s string) (AccountClass, bool) {
	switch s {
	case "admin", "admins":
		return ClassAdmin, true
	case "supplier", "suppliers":
		return ClassSupplier, true
	case "user", "users":
		return ClassMobile, true
	}
	return "", false
}

// Table returns the backing table for the class.
func (c AccountClass) Table() string {
	switch c {
	case ClassAdmin:
		return "admins"
	case ClassSupplier:
		return "suppliers"
	default:
		return "app_users"
	}
}

// ClaimKey returns the class-specific JWT claim that duplicates the subject
// id ("admin_id", "supplier_id" or "user_id").
func (c AccountClass) ClaimKey() string {
	switch c {
	case ClassAdmin:
		return "admin_id"
	case ClassSupplier:
		return "supplier_id"
	default:
		return "user_id"
	}
}

// HasRole reports whether accounts of this class carry a role reference.
// Mobile users have none; permission checks deny them every module action.
func (c AccountClass) HasRole() bool { return c != ClassMobile }

// Account mirrors one row of the admins/suppliers/app_users tables.  The
// three tables share the same columns; Class records which one the row came
// from.
//
// Fields:
//  ID             – primary key identifier of the account.
//  Class          – which account table the row belongs to.
//  Email          – unique email address within the class.
//  PasswordHash   – bcrypt hashed password.
//  RoleID         – foreign key into the roles table; zero/invalid for mobile users.
//  IsActive       – whether the account may log in at all.
//  FailedAttempts – consecutive wrong-password count since the last success.
//  LockedUntil    – lockout expiry; nil when the account is not locked.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type Account struct {
	ID             uint64
	Class          AccountClass
	Email          string
	PasswordHash   string
	RoleID         uint64 // 0 when the class has no role (mobile users)
	IsActive       bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoleStatusActive is the roles.status value for a usable role; anything
// else blocks login and every permission for accounts holding the role.
const RoleStatusActive = 1

// Role represents a row in the `roles` table.
type Role struct {
	ID          uint64
	Name        string
	Description string
	Status      int
}

// Blocked reports whether the role denies login and all module actions.
func (r Role) Blocked() bool { return r.Status != RoleStatusActive }

// ModuleGrant is one row of the role_permissions table: the CRUD capability
// of a role on a single module.  At most one grant exists per
// (role, module) pair; a missing row means no capability.
type ModuleGrant struct {
	Module    string `json:"module"`
	CanRead   bool   `json:"can_read"`
	CanCreate bool   `json:"can_create"`
	CanUpdate bool   `json:"can_update"`
	CanDelete bool   `json:"can_delete"`
}

// Action names one of the four CRUD capabilities of a grant row.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Allows reports whether the grant covers the action.
func (g ModuleGrant) Allows(a Action) bool {
	switch a {
	case ActionRead:
		return g.CanRead
	case ActionCreate:
		return g.CanCreate
	case ActionUpdate:
		return g.CanUpdate
	case ActionDelete:
		return g.CanDelete
	}
	return false
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each token
// belongs to one account and is rotated in place on every refresh: the row
// keeps its id while token_hash and expires_at are overwritten, so a stale
// pre-rotation token can never validate again.  The plain token is not
// stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID           uint64
	AccountClass AccountClass
	AccountID    uint64
	TokenHash    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// LoginLog is an append-only audit record written for every login attempt,
// including attempts against unknown emails (logged with AccountID 0).  Rows
// are never mutated.
type LoginLog struct {
	ID           uint64       `json:"id"`
	AccountClass AccountClass `json:"account_class"`
	AccountID    uint64       `json:"account_id"`
	Email        string       `json:"email"`
	IP           string       `json:"ip"`
	UserAgent    string       `json:"user_agent"`
	Success      bool         `json:"success"`
	Reason       string       `json:"reason,omitempty"` // internal detail, never echoed to clients
	CreatedAt    time.Time    `json:"created_at"`
}
