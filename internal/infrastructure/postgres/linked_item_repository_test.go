package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"wealthdash/internal/domain/linkeditem"
)

// prefixCipher marks values instead of encrypting them so queries can be matched.
type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) { return "enc:" + s, nil }

func (prefixCipher) Decrypt(s string) (string, error) {
	if !strings.HasPrefix(s, "enc:") {
		return "", errors.New("not encrypted")
	}
	return strings.TrimPrefix(s, "enc:"), nil
}

func newLinkedItemRepoWithMock(t *testing.T) (*LinkedItemRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLinkedItemRepository(&DB{db}, prefixCipher{}), mock
}

var itemColumns = []string{"id", "user_id", "item_id", "access_token", "institution_id", "status", "created_at", "updated_at"}

func TestLinkedItemRepository_Upsert(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+linked_items.*ON\s+CONFLICT\s+\(item_id\).*RETURNING`).
		WithArgs(userID, "item-1", "enc:access-sandbox-1", "ins_3").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(int64(7), userID.String(), "item-1", "enc:access-sandbox-1", "ins_3", "active", now, now))

	item, err := repo.Upsert(context.Background(), linkeditem.CreateParams{
		UserID: userID, ItemID: "item-1", AccessToken: "access-sandbox-1", InstitutionID: "ins_3",
	})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if item.ID != 7 || item.UserID != userID || item.AccessToken != "access-sandbox-1" || item.Status != linkeditem.StatusActive {
		t.Fatalf("unexpected item: %+v", item)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLinkedItemRepository_Upsert_OwnedByAnotherUser(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+linked_items`).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, err := repo.Upsert(context.Background(), linkeditem.CreateParams{
		UserID: uuid.New(), ItemID: "item-1", AccessToken: "tok",
	})
	if !errors.Is(err, linkeditem.ErrItemAlreadyLinked) {
		t.Fatalf("want ErrItemAlreadyLinked, got %v", err)
	}
}

func TestLinkedItemRepository_ListActiveByUser(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+linked_items\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(int64(1), userID.String(), "item-a", "enc:tok-a", "ins_1", "active", now, now).
			AddRow(int64(2), userID.String(), "item-b", "enc:tok-b", "", "active", now, now))

	items, err := repo.ListActiveByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListActiveByUser error: %v", err)
	}
	if len(items) != 2 || items[0].AccessToken != "tok-a" || items[1].ItemID != "item-b" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestLinkedItemRepository_ListByUser_Empty(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	userID := uuid.New()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+linked_items\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	items, err := repo.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", items)
	}
}

func TestLinkedItemRepository_ListActiveByUser_CorruptToken(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+linked_items`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(int64(1), userID.String(), "item-a", "plaintext", "", "active", now, now))

	if _, err := repo.ListActiveByUser(context.Background(), userID); err == nil {
		t.Fatal("expected decrypt error")
	}
}

func TestLinkedItemRepository_GetByItemID_NotFound(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	userID := uuid.New()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+linked_items\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+item_id\s*=\s*\$2`).
		WithArgs(userID, "ghost").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, err := repo.GetByItemID(context.Background(), userID, "ghost")
	if !errors.Is(err, linkeditem.ErrItemNotFound) {
		t.Fatalf("want ErrItemNotFound, got %v", err)
	}
}

func TestLinkedItemRepository_UpdateStatus(t *testing.T) {
	userID := uuid.New()
	q := `(?s)^UPDATE\s+linked_items\s+SET\s+status\s*=\s*\$1,\s*updated_at\s*=\s*NOW\(\)\s+WHERE\s+user_id\s*=\s*\$2\s+AND\s+item_id\s*=\s*\$3$`

	tests := []struct {
		name     string
		affected int64
		dbErr    error
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "no such item", affected: 0, wantErr: linkeditem.ErrItemNotFound},
		{name: "db error", dbErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newLinkedItemRepoWithMock(t)
			exp := mock.ExpectExec(q).WithArgs("revoked", userID, "item-1")
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := repo.UpdateStatus(context.Background(), userID, "item-1", linkeditem.StatusRevoked)
			switch {
			case tt.dbErr != nil:
				if !errors.Is(err, tt.dbErr) {
					t.Fatalf("want wrapped db error, got %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("UpdateStatus error: %v", err)
				}
			}
		})
	}
}

func TestLinkedItemRepository_ListUsersWithActiveItems(t *testing.T) {
	repo, mock := newLinkedItemRepoWithMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)^SELECT\s+DISTINCT\s+user_id\s+FROM\s+linked_items\s+WHERE\s+status\s*=\s*'active'`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(a.String()).AddRow(b.String()))

	users, err := repo.ListUsersWithActiveItems(context.Background())
	if err != nil {
		t.Fatalf("ListUsersWithActiveItems error: %v", err)
	}
	if len(users) != 2 || users[0] != a || users[1] != b {
		t.Fatalf("unexpected users: %v", users)
	}
}
