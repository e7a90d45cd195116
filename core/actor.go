/*
actor.go - Roles and the acting identity threaded through services

PURPOSE:
  Every mutating operation takes an Actor: who is doing this, in which
  workspace, with what role. Services use the role classes below for
  their permission checks; the API layer builds the Actor from the
  verified session token.

ROLE MODEL:
  OWNER    workspace owner, full control
  ADMIN    full control minus ownership transfer
  MANAGER  approves requests, reviews time entries, runs automations
  EMPLOYEE self-service only

SEE ALSO:
  - api/auth.go: where Actors are constructed
*/
package core

type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// IsManagement reports whether the role may approve, reject, and review.
func (r Role) IsManagement() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleManager
}

// IsAdmin reports whether the role may lock payroll months and change
// workspace settings.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	EmployeeID  string
	WorkspaceID string
	Role        Role
}

// System returns the actor used by scheduler-triggered automations.
// It passes every role check and audits as "system".
func System(workspaceID string) Actor {
	return Actor{EmployeeID: "system", WorkspaceID: workspaceID, Role: RoleOwner}
}

// CanActFor reports whether the actor may operate on records belonging
// to the given employee: themselves always, others with management.
func (a Actor) CanActFor(employeeID string) bool {
	return a.EmployeeID == employeeID || a.Role.IsManagement()
}
