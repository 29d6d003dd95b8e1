package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"rpg-server/internal/domain/account"
)

type Accounts struct {
	db *pgxpool.Pool
}

func NewAccounts(db *pgxpool.Pool) *Accounts {
	return &Accounts{db: db}
}

func (r *Accounts) Create(ctx context.Context, handle, name, passwordHash string) (account.Account, error) {
	var a account.Account
	err := r.db.QueryRow(ctx, `
INSERT INTO accounts (handle, name, password_hash)
VALUES ($1, $2, $3)
RETURNING id, handle, name, password_hash, created_at
`, handle, name, passwordHash).Scan(&a.ID, &a.Handle, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrDuplicate) {
			return account.Account{}, ErrDuplicate
		}
		return account.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (r *Accounts) FindByHandle(ctx context.Context, handle string) (account.Account, error) {
	var a account.Account
	err := r.db.QueryRow(ctx, `
SELECT id, handle, name, password_hash, created_at
FROM accounts WHERE handle = $1
`, handle).Scan(&a.ID, &a.Handle, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrNotFound) {
			return account.Account{}, ErrNotFound
		}
		return account.Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}
