package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	NowFunc = time.Now // mockable

	dummyUsr     user.User
	dummyUsrInit sync.Once
)

// PasswordVerifier checks a plain password against a User's stored hash.
type PasswordVerifier interface {
	Verify(usr user.User, pwd string) error
}

// BcryptVerifier verifies passwords hashed by user.User.SetPassword.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(usr user.User, pwd string) error {
	return usr.CheckPassword(pwd)
}

// dummyUser has a real hash so that unknown usernames cost as much as wrong passwords.
func dummyUser() user.User {
	dummyUsrInit.Do(func() {
		_ = dummyUsr.SetPassword("not-a-real-password")
	})
	return dummyUsr
}

type (
	Deps struct {
		DB       core.Transactor
		Tokens   Repository
		Users    user.Repository
		Signer   *Signer
		Verifier PasswordVerifier // defaults to BcryptVerifier
		TTL      time.Duration
	}

	Service struct {
		db       core.Transactor
		tokens   Repository
		users    user.Repository
		signer   *Signer
		verifier PasswordVerifier
		ttl      time.Duration
	}

	// Session is the result of a successful login.
	Session struct {
		AccessToken string
		User        user.User
	}
)

func NewService(deps Deps) *Service {
	verifier := deps.Verifier
	if verifier == nil {
		verifier = BcryptVerifier{}
	}
	return &Service{
		db:       deps.DB,
		tokens:   deps.Tokens,
		users:    deps.Users,
		signer:   deps.Signer,
		verifier: verifier,
		ttl:      deps.TTL,
	}
}

// Issue checks the credentials and returns a signed token string, not persisted yet.
// unknown usernames and wrong passwords both fail with ErrInvalidCredentials.
func (svc *Service) Issue(ctx context.Context, username, password string) (string, user.User, error) {
	usr, err := svc.users.GetUserByUsername(ctx, core.CleanString(username, true /* lower */))
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return "", user.User{}, errors.Wrap(err, "finding user by username")
		}
		_ = svc.verifier.Verify(dummyUser(), password)
		return "", user.User{}, ErrInvalidCredentials
	}
	if err = svc.verifier.Verify(usr, password); err != nil {
		return "", user.User{}, ErrInvalidCredentials
	}

	tkn, err := svc.signer.Sign(usr.Username, NowFunc().UTC(), svc.ttl)
	if err != nil {
		return "", user.User{}, err
	}
	return tkn, usr, nil
}

// Persist stores a new active Token for username.
func (svc *Service) Persist(ctx context.Context, username, tokenString string) (Token, error) {
	usr, err := svc.users.GetUserByUsername(ctx, username)
	if err != nil {
		return Token{}, errors.Wrap(err, "finding user by username")
	}
	now := NowFunc().UTC()
	tkn, err := svc.tokens.CreateToken(ctx, Token{
		Token:     tokenString,
		UserID:    usr.ID,
		Active:    true,
		CreatedAt: now,
		ExpiresAt: now.Add(svc.ttl),
	})
	if err != nil {
		return Token{}, errors.Wrap(err, "creating token")
	}
	return tkn, nil
}

// Login issues & persists a token and records the user's visit.
func (svc *Service) Login(ctx context.Context, username, password string) (Session, error) {
	tokenString, usr, err := svc.Issue(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	now := NowFunc().UTC()
	err = svc.db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.Persist(ctx, usr.Username, tokenString); err != nil {
			return err
		}
		return errors.Wrap(svc.users.SetLastVisit(ctx, usr.ID, now), "setting last visit")
	})
	if err != nil {
		return Session{}, err
	}
	usr.LastVisit = now
	return Session{AccessToken: tokenString, User: usr}, nil
}

// Validate returns the owner of tokenString if the token is known, unexpired, active and correctly signed.
func (svc *Service) Validate(ctx context.Context, tokenString string) (user.User, error) {
	tkn, err := svc.tokens.GetToken(ctx, tokenString)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding token")
	}

	now := NowFunc()
	switch tkn.State(now) {
	case TokenExpired:
		return user.User{}, ErrTokenExpired
	case TokenRevoked:
		return user.User{}, ErrTokenRevoked
	}

	claims, err := svc.signer.Verify(tokenString, now)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.users.GetUserByID(ctx, tkn.UserID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding token owner")
	}
	if claims.Subject != usr.Username {
		return user.User{}, ErrTokenInvalid
	}
	return usr, nil
}

// Revoke deactivates tokenString. Revoking a revoked token is a no-op.
func (svc *Service) Revoke(ctx context.Context, tokenString string) error {
	tkn, err := svc.tokens.GetToken(ctx, tokenString)
	if err != nil {
		return errors.Wrap(err, "finding token")
	}
	if !tkn.Active {
		return nil
	}
	return errors.Wrap(svc.tokens.DeactivateToken(ctx, tokenString), "deactivating token")
}

// SweepExpired deletes every token that expired before `now`.
func (svc *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := svc.tokens.DeleteTokensExpiredBefore(ctx, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired tokens")
	}
	return n, nil
}
