package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"rpg-server/internal/domain/character"
)

type Characters struct {
	db *pgxpool.Pool
}

func NewCharacters(db *pgxpool.Pool) *Characters {
	return &Characters{db: db}
}

func (r *Characters) Create(ctx context.Context, accountID int64, name string) (character.Character, error) {
	var c character.Character
	err := r.db.QueryRow(ctx, `
INSERT INTO characters (account_id, name, health, power, money)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, account_id, name, health, power, money, created_at
`, accountID, name, character.DefaultHealth, character.DefaultPower, character.DefaultMoney).
		Scan(&c.ID, &c.AccountID, &c.Name, &c.Health, &c.Power, &c.Money, &c.CreatedAt)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrDuplicate) {
			return character.Character{}, ErrDuplicate
		}
		return character.Character{}, fmt.Errorf("insert character: %w", err)
	}
	return c, nil
}

func (r *Characters) FindByID(ctx context.Context, id int64) (character.Character, error) {
	var c character.Character
	err := r.db.QueryRow(ctx, `
SELECT id, account_id, name, health, power, money, created_at
FROM characters WHERE id = $1
`, id).Scan(&c.ID, &c.AccountID, &c.Name, &c.Health, &c.Power, &c.Money, &c.CreatedAt)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrNotFound) {
			return character.Character{}, ErrNotFound
		}
		return character.Character{}, fmt.Errorf("query character: %w", err)
	}
	return c, nil
}

// Delete removes the character row. Inventory and equipped-item rows go
// with it via ON DELETE CASCADE.
func (r *Characters) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
