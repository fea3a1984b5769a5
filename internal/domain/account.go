package domain

import "time"

// Account holds a user's point balance within one arena (or globally when
// ArenaID is empty). Points are never negative and are only mutated inside a
// ledger transaction.
type Account struct {
	ID        string
	OwnerID   string
	ArenaID   string
	Points    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is the minimal identity record the ledger keeps so transfers can
// resolve a receiver by email. Full profile data lives with the out-of-scope
// user-management collaborator.
type User struct {
	ID    string
	Email string
}

// MemberRole is a user's role within an arena.
type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

// Member links a user to an arena with a role. Membership CRUD is owned by an
// external collaborator; the ledger only reads it for authorization and
// transfer checks.
type Member struct {
	ArenaID  string
	UserID   string
	Role     MemberRole
	JoinedAt time.Time
}
