package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		users = append(users, copyUser(u))
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	defer repo.db.lock(ctx)()

	excluded := make(map[int]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}

	for _, usr := range repo.db.t.users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	for _, u := range repo.db.t.users {
		if u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}

	usr.ID = repo.db.t.nextPK("users")
	repo.db.t.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, ordering []core.DBOrdering) ([]user.User, error) {
	defer repo.db.lock(ctx)()

	users := repo.query()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "id", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "last_visit":
		return compareTimes(a.LastVisit, b.LastVisit)
	default:
		return a.ID - b.ID
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	defer repo.db.lock(ctx)()

	if usr, ok := repo.db.t.users[id]; ok {
		return copyUser(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	defer repo.db.lock(ctx)()

	for _, usr := range repo.db.t.users {
		if usr.Username == username {
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	// only save editable fields
	origUsr, ok := repo.db.t.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	origUsr.Username = usr.Username
	origUsr.Email = usr.Email
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	repo.db.t.users[usr.ID] = copyUser(origUsr)
	return copyUser(origUsr), nil
}

func (repo *userRepository) SetUserGroup(ctx context.Context, id int, groupNum *int) error {
	defer repo.db.lock(ctx)()

	usr, ok := repo.db.t.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.GroupNum = copyIntPtr(groupNum)
	repo.db.t.users[id] = usr
	return nil
}

func (repo *userRepository) SetLastVisit(ctx context.Context, id int, t time.Time) error {
	defer repo.db.lock(ctx)()

	usr, ok := repo.db.t.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastVisit = t
	repo.db.t.users[id] = usr
	return nil
}

// DeleteUser deletes the user with its tokens & grades, and detaches it from groups.
func (repo *userRepository) DeleteUser(ctx context.Context, id int) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.t.users, id)

	for key, tkn := range repo.db.t.tokens {
		if tkn.UserID == id {
			delete(repo.db.t.tokens, key)
		}
	}
	for num, grp := range repo.db.t.groups {
		if grp.TeacherID != nil && *grp.TeacherID == id {
			grp.TeacherID = nil
		}
		grp.StudentIDs = removeInt(grp.StudentIDs, id)
		repo.db.t.groups[num] = grp
	}
	for gid, grd := range repo.db.t.grades {
		if grd.StudentID == id {
			delete(repo.db.t.grades, gid)
		}
	}
	return nil
}

type roleRepository struct{}

var _ user.RoleRepository = (*roleRepository)(nil) // interface compliance check

// NewRoleRepository serves the fixed role set.
func NewRoleRepository() user.RoleRepository {
	return &roleRepository{}
}

func (roleRepository) QueryRoles(context.Context) ([]user.Role, error) {
	return append([]user.Role(nil), user.Roles...), nil
}

func (roleRepository) GetRoleByName(_ context.Context, name string) (user.Role, error) {
	for _, role := range user.Roles {
		if role.Name == name {
			return role, nil
		}
	}
	return user.Role{}, user.ErrRoleNotFound
}
