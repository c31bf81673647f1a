// Package auth holds the role hierarchy, JWT issuing and password hashing.
package auth

import "strings"

const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

var roleLevels = map[string]int{
	RoleStudent: 1,
	RoleFaculty: 2,
	RoleStaff:   2,
	RoleAdmin:   3,
}

// Level returns the privilege rank of role; unknown roles rank 0.
func Level(role string) int {
	return roleLevels[strings.ToLower(role)]
}

func IsKnownRole(role string) bool {
	return Level(role) > 0
}

// Allowed reports whether actorRole ranks at least as high as required.
// Unknown roles rank 0, so an unknown actor only passes a level-0
// requirement. Configured requirements are checked by config.Validate.
func Allowed(actorRole, required string) bool {
	return Level(actorRole) >= Level(required)
}

func Roles() []string {
	return []string{RoleStudent, RoleFaculty, RoleStaff, RoleAdmin}
}
