package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Roles
const (
	RoleUser    = "ROLE_USER" // student
	RoleTeacher = "ROLE_TEACHER"
	RoleAdmin   = "ROLE_ADMIN"
)

var (
	// Roles lists every Role with its stable ID.
	Roles = []Role{
		{ID: 1, Name: RoleUser},
		{ID: 2, Name: RoleTeacher},
		{ID: 3, Name: RoleAdmin},
	}
	AllRoles = []string{RoleUser, RoleTeacher, RoleAdmin}
)

// RoleFromRequest maps a requested role name to a Role name.
// "admin" and "teacher" map explicitly; anything else is a plain user.
func RoleFromRequest(name string) string {
	switch core.CleanString(name, true /* lower */) {
	case "admin":
		return RoleAdmin
	case "teacher":
		return RoleTeacher
	default:
		return RoleUser
	}
}

type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Roles        []Role    `json:"roles"`
	GroupNum     *int      `json:"group_num"` // group the user is enrolled in as a student
	CreatedAt    time.Time `json:"created_at"` // UTC
	LastVisit    time.Time `json:"last_visit"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of names.
func (u User) HasAnyRole(names ...string) bool {
	for _, name := range names {
		if u.HasRole(name) {
			return true
		}
	}
	return false
}

func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return names
}

func (u User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u User) IsTeacher() bool { return u.HasRole(RoleTeacher) }
func (u User) IsStudent() bool { return u.HasRole(RoleUser) }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Username string   `json:"username" validate:"required,min=3,max=20,alphanum_"`
	Email    string   `json:"email" validate:"required,max=50,email"`
	Password string   `json:"password" validate:"required,min=6,max=40"`
	Roles    []string `json:"role"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	Username string `json:"username" validate:"omitempty,min=3,max=20,alphanum_"`
	Email    string `json:"email" validate:"omitempty,max=50,email"`
	Password string `json:"password" validate:"omitempty,min=6,max=40"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}
