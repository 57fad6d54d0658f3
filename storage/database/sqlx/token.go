package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

type (
	tokenRow struct {
		ID        int       `db:"id"`
		Token     string    `db:"token"`
		UserID    int       `db:"user_id"`
		Active    bool      `db:"active"`
		CreatedAt time.Time `db:"created_at"`
		ExpiresAt time.Time `db:"expires_at"`
	}

	tokenRepository struct {
		db *sqlx.DB
	}
)

var _ auth.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *sqlx.DB) auth.Repository {
	return &tokenRepository{db: db}
}

func (r tokenRow) toToken() auth.Token {
	return auth.Token{
		ID:        r.ID,
		Token:     r.Token,
		UserID:    r.UserID,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

func (repo *tokenRepository) CreateToken(ctx context.Context, tkn auth.Token) (auth.Token, error) {
	q := `INSERT INTO tokens (token, user_id, active, created_at, expires_at)
		VALUES (:token, :user_id, :active, :created_at, :expires_at) RETURNING id`
	row := tokenRow{
		Token:     tkn.Token,
		UserID:    tkn.UserID,
		Active:    tkn.Active,
		CreatedAt: tkn.CreatedAt.UTC(),
		ExpiresAt: tkn.ExpiresAt.UTC(),
	}

	exec := getExec(ctx, repo.db)
	q, args, err := exec.BindNamed(q, row)
	if err != nil {
		return auth.Token{}, errors.Wrap(err, "binding token")
	}
	if err = exec.QueryRowxContext(ctx, q, args...).Scan(&row.ID); err != nil {
		return auth.Token{}, errors.Wrap(err, "inserting token")
	}
	return row.toToken(), nil
}

func (repo *tokenRepository) GetToken(ctx context.Context, token string) (auth.Token, error) {
	var row tokenRow
	q := "SELECT id, token, user_id, active, created_at, expires_at FROM tokens WHERE token = $1"
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q, token); err != nil {
		if err == sql.ErrNoRows {
			return auth.Token{}, auth.ErrTokenNotFound
		}
		return auth.Token{}, errors.Wrap(err, "selecting token")
	}
	return row.toToken(), nil
}

func (repo *tokenRepository) DeactivateToken(ctx context.Context, token string) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "UPDATE tokens SET active = false WHERE token = $1", token)
	if err != nil {
		return errors.Wrap(err, "deactivating token")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrTokenNotFound
	}
	return nil
}

func (repo *tokenRepository) DeleteTokensExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "DELETE FROM tokens WHERE expires_at < $1", t.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired tokens")
	}
	return rowsAffected(res)
}
