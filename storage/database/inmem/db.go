package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/academic"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

type (
	// DB is a process-local store. One mutex guards every table;
	// a transaction holds it until fn returns and restores a snapshot on error.
	DB struct {
		mutex sync.Mutex
		t     *tables
	}

	tables struct {
		users    map[int]user.User
		tokens   map[string]auth.Token
		groups   map[int]academic.Group
		journals map[int]academic.Journal
		lessons  map[int]academic.Lesson
		tasks    map[int]academic.Task
		grades   map[int]academic.Grade
		pk       map[string]int // last primary key per table
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		t: &tables{
			users:    make(map[int]user.User),
			tokens:   make(map[string]auth.Token),
			groups:   make(map[int]academic.Group),
			journals: make(map[int]academic.Journal),
			lessons:  make(map[int]academic.Lesson),
			tasks:    make(map[int]academic.Task),
			grades:   make(map[int]academic.Grade),
			pk:       make(map[string]int),
		},
	}
}

func (t *tables) nextPK(table string) int {
	t.pk[table]++
	return t.pk[table]
}

func (t *tables) clone() *tables {
	c := &tables{
		users:    make(map[int]user.User, len(t.users)),
		tokens:   make(map[string]auth.Token, len(t.tokens)),
		groups:   make(map[int]academic.Group, len(t.groups)),
		journals: make(map[int]academic.Journal, len(t.journals)),
		lessons:  make(map[int]academic.Lesson, len(t.lessons)),
		tasks:    make(map[int]academic.Task, len(t.tasks)),
		grades:   make(map[int]academic.Grade, len(t.grades)),
		pk:       make(map[string]int, len(t.pk)),
	}
	for k, v := range t.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range t.tokens {
		c.tokens[k] = v
	}
	for k, v := range t.groups {
		c.groups[k] = copyGroup(v)
	}
	for k, v := range t.journals {
		c.journals[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.tasks {
		c.tasks[k] = v
	}
	for k, v := range t.grades {
		c.grades[k] = v
	}
	for k, v := range t.pk {
		c.pk[k] = v
	}
	return c
}

func (db *DB) inTx(ctx context.Context) bool {
	txDB, _ := ctx.Value(txKey{}).(*DB)
	return txDB == db
}

// lock acquires the DB mutex unless ctx already carries this DB's transaction.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

// WithinTx runs fn with exclusive access to the DB. Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	snapshot := db.t.clone()
	defer func() {
		if r := recover(); r != nil {
			db.t = snapshot
			panic(r)
		}
		if err != nil {
			db.t = snapshot
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, db))
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	return core.IntPtr(*p)
}

func copyUser(usr user.User) user.User {
	usr.Roles = append([]user.Role(nil), usr.Roles...)
	usr.GroupNum = copyIntPtr(usr.GroupNum)
	if usr.PasswordHash != nil {
		usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	}
	return usr
}

func copyGroup(grp academic.Group) academic.Group {
	grp.StudentIDs = append([]int{}, grp.StudentIDs...)
	grp.TeacherID = copyIntPtr(grp.TeacherID)
	grp.JournalID = copyIntPtr(grp.JournalID)
	return grp
}
