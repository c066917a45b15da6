package responder

import (
	"time"

	"github.com/google/uuid"
)

// Roles a responder can hold. Escalation levels map onto these roles: the
// further a case escalates, the more senior the notified group.
const (
	RoleNurse         = "nurse"
	RolePhysician     = "physician"
	RoleOnCallDoctor  = "on_call_doctor"
	RoleEmergencyTeam = "emergency_team"
	RoleSupervisor    = "supervisor"
)

// Responder maps to the responder table.
type Responder struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Role        string    `db:"role" json:"role"`
	Specialty   *string   `db:"specialty" json:"specialty,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	PushToken   *string   `db:"push_token" json:"push_token,omitempty"`
	Available   bool      `db:"available" json:"available"`
	ActiveCases int       `db:"active_cases" json:"active_cases"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RolesForLevel returns the responder roles targeted at an escalation level.
// Level 1 targets only the assigned responder and so maps to no roles.
func RolesForLevel(level int) []string {
	switch {
	case level <= 1:
		return nil
	case level == 2:
		return []string{RoleNurse}
	case level == 3:
		return []string{RoleOnCallDoctor}
	case level == 4:
		return []string{RoleEmergencyTeam}
	default:
		return []string{RoleEmergencyTeam, RoleSupervisor}
	}
}

func validRole(role string) bool {
	switch role {
	case RoleNurse, RolePhysician, RoleOnCallDoctor, RoleEmergencyTeam, RoleSupervisor:
		return true
	}
	return false
}
