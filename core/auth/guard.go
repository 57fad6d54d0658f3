package auth

import (
	"context"

	"github.com/trezcool/academia/core/user"
)

// Operation names a role-gated operation.
type Operation string

const (
	OpLogout      Operation = "logout"
	OpGetUserInfo Operation = "getUserInfo"
	OpUpdateUser  Operation = "updateUser"
	OpListUsers   Operation = "listUsers"
	OpDeleteUser  Operation = "deleteUser"
	OpSweepTokens Operation = "sweepTokens"

	OpCreateGroup     Operation = "createGroup"
	OpDeleteGroup     Operation = "deleteGroup"
	OpAssignTeacher   Operation = "assignTeacher"
	OpListGroups      Operation = "listGroups"
	OpGetGroup        Operation = "getGroup"
	OpEnrollStudent   Operation = "enrollStudent"
	OpUnenrollStudent Operation = "unenrollStudent"
	OpCreateLesson    Operation = "createLesson"
	OpGetLesson       Operation = "getLesson"
	OpCreateTask      Operation = "createTask"
	OpRecordGrade     Operation = "recordGrade"
)

var (
	anyRole     = []string{user.RoleUser, user.RoleTeacher, user.RoleAdmin}
	adminOnly   = []string{user.RoleAdmin}
	teacherOnly = []string{user.RoleTeacher}

	// requiredRoles is the static "operation requires one of roles" table.
	requiredRoles = map[Operation][]string{
		OpLogout:      anyRole,
		OpGetUserInfo: anyRole,
		OpUpdateUser:  anyRole,
		OpListUsers:   {user.RoleAdmin, user.RoleTeacher},
		OpDeleteUser:  adminOnly,
		OpSweepTokens: adminOnly,

		OpCreateGroup:     adminOnly,
		OpDeleteGroup:     adminOnly,
		OpAssignTeacher:   adminOnly,
		OpListGroups:      anyRole,
		OpGetGroup:        anyRole,
		OpEnrollStudent:   teacherOnly,
		OpUnenrollStudent: teacherOnly,
		OpCreateLesson:    teacherOnly,
		OpGetLesson:       anyRole,
		OpCreateTask:      teacherOnly,
		OpRecordGrade:     teacherOnly,
	}
)

// RequiredRoles returns the roles (any of) required by op; nil for unknown operations.
func RequiredRoles(op Operation) []string {
	return requiredRoles[op]
}

// Permits checks that usr holds one of the roles required by op.
func Permits(usr user.User, op Operation) error {
	roles, ok := requiredRoles[op]
	if !ok || !usr.HasAnyRole(roles...) {
		return ErrForbidden
	}
	return nil
}

type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (user.User, error)
}

// Guard resolves a bearer token to its user and enforces role requirements.
type Guard struct {
	tokens TokenValidator
}

func NewGuard(tokens TokenValidator) *Guard {
	return &Guard{tokens: tokens}
}

// Authorize validates tokenString and checks that its owner holds at least one of roles.
// an empty roles list never authorizes.
func (g *Guard) Authorize(ctx context.Context, tokenString string, roles ...string) (user.User, error) {
	usr, err := g.tokens.Validate(ctx, tokenString)
	if err != nil {
		return user.User{}, err
	}
	if !usr.HasAnyRole(roles...) {
		return user.User{}, ErrForbidden
	}
	return usr, nil
}

func (g *Guard) AuthorizeOperation(ctx context.Context, tokenString string, op Operation) (user.User, error) {
	return g.Authorize(ctx, tokenString, RequiredRoles(op)...)
}
