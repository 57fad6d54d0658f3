package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

const ttl = time.Hour

func setup(t *testing.T) (*commandLine, *testutil.Store, *bytes.Buffer) {
	store := testutil.NewStore()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	out := new(bytes.Buffer)
	return &commandLine{
		usrSvc:   store.UserService(),
		authSvc:  store.AuthService(ttl),
		validate: validate,
		out:      out,
	}, store, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

// mockPassword makes the password prompt return pwd; the returned func restores it.
func mockPassword(pwd string) func() {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
	return func() { readPasswordFunc = orig }
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, store, _ := setup(t)
	testutil.CreateUser(t, store.Users, "taken", "taken@test.com", "")

	tests := []struct {
		cliTest
		wantRoles []string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no email", args: []string{"adduser", "-username", "bob"}, pwd: "x9-Lambda", wantErr: errHelp}},
		{cliTest: cliTest{name: "no password", args: []string{"adduser", "-username", "bob", "-email", "bob@test.com"}, wantErr: errHelp}},
		{
			cliTest: cliTest{
				name: "username taken", args: []string{"adduser", "-username", "Taken", "-email", "new@test.com"}, pwd: "x9-Lambda",
				wantErrStr: "a user with this username already exists",
			},
		},
		{
			cliTest:   cliTest{name: "student", args: []string{"adduser", "-username", "bob", "-email", "bob@test.com"}, pwd: "x9-Lambda"},
			wantRoles: []string{user.RoleUser},
		},
		{
			cliTest:   cliTest{name: "admin teacher", args: []string{"adduser", "-username", "boss", "-email", "boss@test.com", "-admin", "-teacher"}, pwd: "x9-Lambda"},
			wantRoles: []string{user.RoleAdmin, user.RoleTeacher},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer mockPassword(tt.pwd)()

			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)

			if err == nil {
				usr, err := store.Users.GetUserByUsername(context.Background(), tt.args[2])
				if assert.NoError(t, err) {
					assert.ElementsMatch(t, tt.wantRoles, usr.RoleNames())
					assert.NoError(t, usr.CheckPassword(tt.pwd))
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, store, _ := setup(t)
	usr := testutil.CreateUser(t, store.Users, "awe", "awe@test.cd", "mdr-Lol1")

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "x9-Lambda", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", " AWE "}, pwd: "x9-Lambda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer mockPassword(tt.pwd)()

			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)

			if err == nil {
				refreshed, err := store.Users.GetUserByID(context.Background(), usr.ID)
				if assert.NoError(t, err) {
					assert.NoError(t, refreshed.CheckPassword(tt.pwd))
				}
			}
		})
	}
}

func Test_commandLine_sweepTokens(t *testing.T) {
	cli, store, out := setup(t)
	testutil.CreateUser(t, store.Users, "awe", "awe@test.cd", "mdr-Lol1")

	// one session expired an hour ago, one still alive
	auth.NowFunc = func() time.Time { return time.Now().Add(-2 * ttl) }
	_, err := cli.authSvc.Login(context.Background(), "awe", "mdr-Lol1")
	auth.NowFunc = time.Now
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if _, err = cli.authSvc.Login(context.Background(), "awe", "mdr-Lol1"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	assert.NoError(t, cli.run([]string{"admin", "sweeptokens"}))
	assert.Equal(t, "1 expired token(s) deleted\n", out.String())

	out.Reset()
	assert.NoError(t, cli.run([]string{"admin", "sweeptokens"}))
	assert.Equal(t, "0 expired token(s) deleted\n", out.String())
}
