package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"wealthdash/internal/domain/linkeditem"
)

// TokenCipher encrypts access tokens at rest.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type LinkedItemRepository struct {
	db     *DB
	cipher TokenCipher
}

func NewLinkedItemRepository(db *DB, cipher TokenCipher) *LinkedItemRepository {
	return &LinkedItemRepository{db: db, cipher: cipher}
}

const linkedItemColumns = `id, user_id, item_id, access_token, institution_id, status, created_at, updated_at`

// Upsert inserts a new active item. Re-linking an item the same user already
// owns replaces its token and reactivates it; an item owned by someone else,
// or one already revoked, is rejected with ErrItemAlreadyLinked.
func (r *LinkedItemRepository) Upsert(ctx context.Context, params linkeditem.CreateParams) (*linkeditem.LinkedItem, error) {
	encrypted, err := r.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `
		INSERT INTO linked_items (user_id, item_id, access_token, institution_id, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (item_id) DO UPDATE
			SET access_token = EXCLUDED.access_token,
			    institution_id = COALESCE(NULLIF(EXCLUDED.institution_id, ''), linked_items.institution_id),
			    status = 'active',
			    updated_at = NOW()
			WHERE linked_items.user_id = EXCLUDED.user_id AND linked_items.status <> 'revoked'
		RETURNING ` + linkedItemColumns

	item, err := r.scanOne(r.db.QueryRowContext(ctx, query, params.UserID, params.ItemID, encrypted, params.InstitutionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, linkeditem.ErrItemAlreadyLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert linked item: %w", err)
	}
	return item, nil
}

func (r *LinkedItemRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error) {
	query := `SELECT ` + linkedItemColumns + `
		FROM linked_items
		WHERE user_id = $1
		ORDER BY created_at, id`
	return r.list(ctx, query, userID)
}

func (r *LinkedItemRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error) {
	query := `SELECT ` + linkedItemColumns + `
		FROM linked_items
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at, id`
	return r.list(ctx, query, userID)
}

func (r *LinkedItemRepository) GetByItemID(ctx context.Context, userID uuid.UUID, itemID string) (*linkeditem.LinkedItem, error) {
	query := `SELECT ` + linkedItemColumns + `
		FROM linked_items
		WHERE user_id = $1 AND item_id = $2`

	item, err := r.scanOne(r.db.QueryRowContext(ctx, query, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, linkeditem.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked item: %w", err)
	}
	return item, nil
}

func (r *LinkedItemRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, itemID string, status linkeditem.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE linked_items SET status = $1, updated_at = NOW() WHERE user_id = $2 AND item_id = $3`,
		string(status), userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update linked item status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return linkeditem.ErrItemNotFound
	}
	return nil
}

func (r *LinkedItemRepository) ListUsersWithActiveItems(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM linked_items WHERE status = 'active' ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with active items: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *LinkedItemRepository) scanOne(row scanner) (*linkeditem.LinkedItem, error) {
	var (
		item   linkeditem.LinkedItem
		token  string
		status string
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.ItemID, &token, &item.InstitutionID, &status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}

	plain, err := r.cipher.Decrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for item %s: %w", item.ItemID, err)
	}
	item.AccessToken = plain
	item.Status = linkeditem.Status(status)
	return &item, nil
}

func (r *LinkedItemRepository) list(ctx context.Context, query string, args ...any) ([]*linkeditem.LinkedItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked items: %w", err)
	}
	defer rows.Close()

	items := []*linkeditem.LinkedItem{}
	for rows.Next() {
		item, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked items: %w", err)
	}
	return items, nil
}
