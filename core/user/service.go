package user

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = core.NewError(core.KindUserNotFound, "user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrRoleNotFound   = errors.New("role is not found")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsers(ctx context.Context, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		// UpdateUser saves the username, email and password hash of usr.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// SetUserGroup sets (or clears, when groupNum is nil) the user's student group.
		SetUserGroup(ctx context.Context, id int, groupNum *int) error
		SetLastVisit(ctx context.Context, id int, t time.Time) error
		DeleteUser(ctx context.Context, id int) error
	}

	RoleRepository interface {
		QueryRoles(ctx context.Context) ([]Role, error)
		GetRoleByName(ctx context.Context, name string) (Role, error)
	}

	Service struct {
		repo  Repository
		roles RoleRepository
	}
)

func NewService(repo Repository, roleRepo RoleRepository) *Service {
	return &Service{repo: repo, roles: roleRepo}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// resolveRoles maps requested role names to stored Roles; no names means RoleUser.
func (svc *Service) resolveRoles(ctx context.Context, names []string) ([]Role, error) {
	if len(names) == 0 {
		names = []string{"user"}
	}
	seen := make(map[string]bool, len(names))
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roleName := RoleFromRequest(name)
		if seen[roleName] {
			continue
		}
		seen[roleName] = true

		role, err := svc.roles.GetRoleByName(ctx, roleName)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "finding role %q", roleName)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	roles, err := svc.resolveRoles(ctx, nu.Roles)
	if err != nil {
		return User{}, err
	}
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     roles,
		CreatedAt: NowFunc().UTC(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryRoles(ctx context.Context) ([]Role, error) {
	return svc.roles.QueryRoles(ctx)
}

func (svc *Service) Query(ctx context.Context, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteUser(ctx, id)
}
