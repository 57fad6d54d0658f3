package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/academia/core/academic"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

const SecretKey = "test-secret"

// Store bundles in-memory repositories sharing one DB.
type Store struct {
	DB      *inmemdb.DB
	Users   user.Repository
	Roles   user.RoleRepository
	Tokens  auth.Repository
	Groups  academic.GroupRepository
	Lessons academic.LessonRepository
	Grades  academic.GradeRepository
}

func NewStore() *Store {
	db := inmemdb.Open()
	return &Store{
		DB:      db,
		Users:   inmemdb.NewUserRepository(db),
		Roles:   inmemdb.NewRoleRepository(),
		Tokens:  inmemdb.NewTokenRepository(db),
		Groups:  inmemdb.NewGroupRepository(db),
		Lessons: inmemdb.NewLessonRepository(db),
		Grades:  inmemdb.NewGradeRepository(db),
	}
}

func (s *Store) AuthService(ttl time.Duration) *auth.Service {
	return auth.NewService(auth.Deps{
		DB:     s.DB,
		Tokens: s.Tokens,
		Users:  s.Users,
		Signer: auth.NewSigner(SecretKey, "academia-test"),
		TTL:    ttl,
	})
}

func (s *Store) Guard(tokens auth.TokenValidator) *auth.Guard {
	return auth.NewGuard(tokens)
}

func (s *Store) UserService() *user.Service {
	return user.NewService(s.Users, s.Roles)
}

func (s *Store) Graph() *academic.Graph {
	return academic.NewGraph(academic.Deps{
		DB:      s.DB,
		Users:   s.Users,
		Groups:  s.Groups,
		Lessons: s.Lessons,
		Grades:  s.Grades,
	})
}

// CreateUser stores a user holding roles (user.RoleUser when none).
func CreateUser(t *testing.T, repo user.Repository, uname, email, pwd string, roles ...string) user.User {
	if len(roles) == 0 {
		roles = []string{user.RoleUser}
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	for _, name := range roles {
		for _, role := range user.Roles {
			if role.Name == name {
				usr.Roles = append(usr.Roles, role)
			}
		}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
