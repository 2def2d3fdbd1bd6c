package model

import "time"

// Tenant is the top-level isolation boundary ("Enterprise").
type Tenant struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	AutoAssign bool      `json:"autoAssign"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Subtype is a tenant-local row for a catalog label. The same label may
// recur independently across tenants with different local ids.
type Subtype struct {
	ID       int    `json:"id"`
	TenantID int    `json:"tenantId"`
	Label    string `json:"label"`
}

type Organization struct {
	ID        int    `json:"id"`
	TenantID  int    `json:"tenantId"`
	Name      string `json:"name"`
	SubtypeID int    `json:"subtypeId"`
	Subtype   string `json:"subtype,omitempty"`
}

// Assignment makes a template visible to organizations of one subtype
// within one tenant.
type Assignment struct {
	ID         int `json:"id"`
	TenantID   int `json:"tenantId"`
	TemplateID int `json:"templateId"`
	SubtypeID  int `json:"subtypeId"`
}

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

type UserStatus string

const (
	StatusPending  UserStatus = "pending"
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type User struct {
	ID       int        `json:"id"`
	TenantID *int       `json:"tenantId,omitempty"`
	Email    string     `json:"email"`
	FullName string     `json:"fullName"`
	Role     UserRole   `json:"role"`
	Status   UserStatus `json:"status"`
}

type AuditEntry struct {
	ID          int       `json:"id"`
	ActorUserID int       `json:"actorUserId"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entityType"`
	EntityID    string    `json:"entityId"`
	Details     string    `json:"details,omitempty"`
	Time        time.Time `json:"time"`
}

// AutoAssignPreference is the closed shape of the per-tenant preference
// blob: newly created organizations pick up existing subtype assignments
// when enabled.
type AutoAssignPreference struct {
	Enabled bool `json:"enabled"`
}

type DeletionKind string

const (
	DeletionSoft DeletionKind = "soft"
	DeletionHard DeletionKind = "hard"
)

// AdminDeletionDetail is the audit detail recorded by admin deletions.
type AdminDeletionDetail struct {
	Kind   DeletionKind `json:"kind"`
	Reason string       `json:"reason"`
}
