package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var userOrderingFields = map[string]bool{
	"id":         true,
	"username":   true,
	"email":      true,
	"created_at": true,
	"last_visit": true,
}

type (
	userRow struct {
		ID           int       `db:"id"`
		Username     string    `db:"username"`
		Email        string    `db:"email"`
		PasswordHash []byte    `db:"password_hash"`
		GroupNum     null.Int  `db:"group_num"`
		CreatedAt    time.Time `db:"created_at"`
		LastVisit    null.Time `db:"last_visit"`
	}

	userRoleRow struct {
		UserID int    `db:"user_id"`
		RoleID int    `db:"role_id"`
		Name   string `db:"name"`
	}

	userRepository struct {
		db *sqlx.DB
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		LastVisit:    r.LastVisit.Time.UTC(),
	}
	if r.GroupNum.Valid {
		usr.GroupNum = core.IntPtr(r.GroupNum.Int)
	}
	return usr
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique violations on username & email.
func trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

// withRoles loads the roles of every user in rows.
func (repo *userRepository) withRoles(ctx context.Context, rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	if len(rows) == 0 {
		return users, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, int64(row.ID))
	}
	var roleRows []userRoleRow
	q := `SELECT ur.user_id, r.id AS role_id, r.name
		FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ANY($1) ORDER BY r.id`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &roleRows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting user roles")
	}

	roles := make(map[int][]user.Role, len(rows))
	for _, rr := range roleRows {
		roles[rr.UserID] = append(roles[rr.UserID], user.Role{ID: rr.RoleID, Name: rr.Name})
	}
	for _, row := range rows {
		usr := row.toUser()
		usr.Roles = roles[row.ID]
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) getOne(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	q := "SELECT * FROM users WHERE " + where
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, "selecting user")
	}
	users, err := repo.withRoles(ctx, []userRow{row})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]int64, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		ids = append(ids, int64(usr.ID))
	}

	var rows []userRow
	q := "SELECT * FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))"
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, username, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if row.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	exec := getExec(ctx, repo.db)
	q := `INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := exec.QueryRowxContext(ctx, q, usr.Username, usr.Email, usr.PasswordHash, usr.CreatedAt.UTC()).Scan(&usr.ID); err != nil {
		return user.User{}, trapUniqueErr(err, "inserting user")
	}
	for _, role := range usr.Roles {
		q = "INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)"
		if _, err := exec.ExecContext(ctx, q, usr.ID, role.ID); err != nil {
			return user.User{}, errors.Wrap(err, "inserting user role")
		}
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, ordering []core.DBOrdering) ([]user.User, error) {
	var rows []userRow
	q := "SELECT * FROM users " + orderBy(ordering, userOrderingFields, "id ASC")
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return repo.withRoles(ctx, rows)
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getOne(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, "username = $1", username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET username = $2, email = $3, password_hash = COALESCE($4, password_hash)
		WHERE id = $1`
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q, usr.ID, usr.Username, usr.Email, null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil))
	if err != nil {
		return user.User{}, trapUniqueErr(err, "updating user")
	}
	if n, err := rowsAffected(res); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) exec(ctx context.Context, msg, q string, args ...interface{}) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) SetUserGroup(ctx context.Context, id int, groupNum *int) error {
	return repo.exec(ctx, "setting user group", "UPDATE users SET group_num = $2 WHERE id = $1", id, null.IntFromPtr(groupNum))
}

func (repo *userRepository) SetLastVisit(ctx context.Context, id int, t time.Time) error {
	return repo.exec(ctx, "setting last visit", "UPDATE users SET last_visit = $2 WHERE id = $1", id, t.UTC())
}

// DeleteUser deletes the user; tokens, roles, memberships & grades cascade.
func (repo *userRepository) DeleteUser(ctx context.Context, id int) error {
	return repo.exec(ctx, "deleting user", "DELETE FROM users WHERE id = $1", id)
}

type roleRepository struct {
	db *sqlx.DB
}

var _ user.RoleRepository = (*roleRepository)(nil) // interface compliance check

func NewRoleRepository(db *sqlx.DB) user.RoleRepository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) QueryRoles(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	if err := getExec(ctx, repo.db).SelectContext(ctx, &roles, "SELECT id, name FROM roles ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "selecting roles")
	}
	return roles, nil
}

func (repo *roleRepository) GetRoleByName(ctx context.Context, name string) (user.Role, error) {
	var role user.Role
	if err := getExec(ctx, repo.db).GetContext(ctx, &role, "SELECT id, name FROM roles WHERE name = $1", name); err != nil {
		if err == sql.ErrNoRows {
			return user.Role{}, user.ErrRoleNotFound
		}
		return user.Role{}, errors.Wrap(err, "selecting role")
	}
	return role, nil
}
