package inmemdb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

type tokenRepository struct {
	db *DB
}

var _ auth.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *DB) auth.Repository {
	return &tokenRepository{db: db}
}

func (repo *tokenRepository) CreateToken(ctx context.Context, tkn auth.Token) (auth.Token, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.tokens[tkn.Token]; ok {
		return auth.Token{}, errors.New("token already exists")
	}
	tkn.ID = repo.db.t.nextPK("tokens")
	repo.db.t.tokens[tkn.Token] = tkn
	return tkn, nil
}

func (repo *tokenRepository) GetToken(ctx context.Context, token string) (auth.Token, error) {
	defer repo.db.lock(ctx)()

	if tkn, ok := repo.db.t.tokens[token]; ok {
		return tkn, nil
	}
	return auth.Token{}, auth.ErrTokenNotFound
}

func (repo *tokenRepository) DeactivateToken(ctx context.Context, token string) error {
	defer repo.db.lock(ctx)()

	tkn, ok := repo.db.t.tokens[token]
	if !ok {
		return auth.ErrTokenNotFound
	}
	tkn.Active = false
	repo.db.t.tokens[token] = tkn
	return nil
}

func (repo *tokenRepository) DeleteTokensExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	defer repo.db.lock(ctx)()

	n := 0
	for key, tkn := range repo.db.t.tokens {
		if tkn.ExpiresAt.Before(t) {
			delete(repo.db.t.tokens, key)
			n++
		}
	}
	return n, nil
}
