package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

const (
	ttl = time.Hour
	pwd = "s3cr3t-Pwd"
)

func setup(t *testing.T) (*testutil.Store, *auth.Service, user.User) {
	store := testutil.NewStore()
	svc := store.AuthService(ttl)
	usr := testutil.CreateUser(t, store.Users, "alice", "alice@test.com", pwd, user.RoleTeacher)
	return store, svc, usr
}

// loginAt logs usr in with auth.NowFunc pinned to `at`.
func loginAt(t *testing.T, svc *auth.Service, username string, at time.Time) string {
	auth.NowFunc = func() time.Time { return at }
	defer func() { auth.NowFunc = time.Now }()

	sess, err := svc.Login(context.Background(), username, pwd)
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	return sess.AccessToken
}

func TestService_Login(t *testing.T) {
	store, svc, usr := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "unknown username", username: "bob", password: pwd, wantErr: auth.ErrInvalidCredentials},
		{name: "wrong password", username: usr.Username, password: "wrong-pwd", wantErr: auth.ErrInvalidCredentials},
		{name: "empty password", username: usr.Username, wantErr: auth.ErrInvalidCredentials},
		{name: "ok", username: usr.Username, password: pwd},
		{name: "username is cleaned", username: "  ALICE ", password: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.Empty(t, sess.AccessToken)
				return
			}
			if assert.NoError(t, err) {
				assert.NotEmpty(t, sess.AccessToken)
				assert.Equal(t, usr.ID, sess.User.ID)
				assert.False(t, sess.User.LastVisit.IsZero())

				tkn, err := store.Tokens.GetToken(ctx, sess.AccessToken)
				if assert.NoError(t, err) {
					assert.True(t, tkn.Active)
					assert.Equal(t, usr.ID, tkn.UserID)
					assert.Equal(t, ttl, tkn.ExpiresAt.Sub(tkn.CreatedAt))
				}
			}
		})
	}

	t.Run("tokens are unique", func(t *testing.T) {
		now := time.Now()
		tkn1 := loginAt(t, svc, usr.Username, now)
		tkn2 := loginAt(t, svc, usr.Username, now)
		assert.NotEqual(t, tkn1, tkn2)
	})

	t.Run("last visit is recorded", func(t *testing.T) {
		at := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
		_ = loginAt(t, svc, usr.Username, at)
		got, err := store.Users.GetUserByID(ctx, usr.ID)
		if assert.NoError(t, err) {
			assert.True(t, at.Equal(got.LastVisit))
		}
	})
}

func TestService_Persist(t *testing.T) {
	_, svc, usr := setup(t)
	ctx := context.Background()

	_, err := svc.Persist(ctx, "ghost", "some-token")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	tkn, err := svc.Persist(ctx, usr.Username, "some-token")
	if assert.NoError(t, err) {
		assert.True(t, tkn.Active)
		assert.Equal(t, usr.ID, tkn.UserID)
	}
}

func TestService_Validate(t *testing.T) {
	store, svc, usr := setup(t)
	ctx := context.Background()
	now := time.Now()

	valid := loginAt(t, svc, usr.Username, now)

	revoked := loginAt(t, svc, usr.Username, now)
	if err := svc.Revoke(ctx, revoked); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}

	expired := loginAt(t, svc, usr.Username, now.Add(-2*ttl))

	expiredRevoked := loginAt(t, svc, usr.Username, now.Add(-2*ttl))
	if err := svc.Revoke(ctx, expiredRevoked); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}

	// stored & active, but signed with another key
	forged, err := auth.NewSigner("other-secret", "academia-test").Sign(usr.Username, now, ttl)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if _, err = svc.Persist(ctx, usr.Username, forged); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "unknown token", token: "not-a-token", wantErr: auth.ErrTokenNotFound},
		{name: "empty token", wantErr: auth.ErrTokenNotFound},
		{name: "revoked token", token: revoked, wantErr: auth.ErrTokenRevoked},
		{name: "expired token", token: expired, wantErr: auth.ErrTokenExpired},
		{name: "expired wins over revoked", token: expiredRevoked, wantErr: auth.ErrTokenExpired},
		{name: "bad signature", token: forged, wantErr: auth.ErrTokenInvalid},
		{name: "valid token", token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Validate(ctx, tt.token)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, usr.ID, got.ID)
				assert.True(t, got.IsTeacher())
			}
		})
	}

	t.Run("owner deleted", func(t *testing.T) {
		bob := testutil.CreateUser(t, store.Users, "bob", "bob@test.com", pwd)
		tkn := loginAt(t, svc, bob.Username, now)
		if err := store.Users.DeleteUser(ctx, bob.ID); err != nil {
			t.Fatalf("DeleteUser() failed: %v", err)
		}
		_, err := svc.Validate(ctx, tkn)
		assert.Equal(t, auth.ErrTokenNotFound, errors.Cause(err))
	})
}

func TestService_Revoke(t *testing.T) {
	store, svc, usr := setup(t)
	ctx := context.Background()
	tknStr := loginAt(t, svc, usr.Username, time.Now())

	assert.NoError(t, svc.Revoke(ctx, tknStr))
	assert.NoError(t, svc.Revoke(ctx, tknStr), "revoking twice is a no-op")

	tkn, err := store.Tokens.GetToken(ctx, tknStr)
	if assert.NoError(t, err) {
		assert.False(t, tkn.Active)
	}

	_, err = svc.Validate(ctx, tknStr)
	assert.Equal(t, auth.ErrTokenRevoked, errors.Cause(err))

	err = svc.Revoke(ctx, "not-a-token")
	assert.Equal(t, auth.ErrTokenNotFound, errors.Cause(err))
}

func TestService_SweepExpired(t *testing.T) {
	store, svc, usr := setup(t)
	ctx := context.Background()
	now := time.Now()

	expired1 := loginAt(t, svc, usr.Username, now.Add(-3*ttl))
	expired2 := loginAt(t, svc, usr.Username, now.Add(-2*ttl))
	live := loginAt(t, svc, usr.Username, now)
	revokedLive := loginAt(t, svc, usr.Username, now)
	assert.NoError(t, svc.Revoke(ctx, revokedLive))

	n, err := svc.SweepExpired(ctx, now)
	if assert.NoError(t, err) {
		assert.Equal(t, 2, n)
	}
	for _, tkn := range []string{expired1, expired2} {
		_, err = store.Tokens.GetToken(ctx, tkn)
		assert.Equal(t, auth.ErrTokenNotFound, errors.Cause(err))
	}
	for _, tkn := range []string{live, revokedLive} {
		_, err = store.Tokens.GetToken(ctx, tkn)
		assert.NoError(t, err)
	}

	n, err = svc.SweepExpired(ctx, now)
	if assert.NoError(t, err) {
		assert.Zero(t, n, "second sweep at the same time removes nothing")
	}
}
