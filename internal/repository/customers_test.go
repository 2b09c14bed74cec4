package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func customerRows(cs ...model.Customer) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "created_at", "updated_at"})
	for _, c := range cs {
		rows.AddRow(c.ID, c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt)
	}
	return rows
}

func TestCustomersRepository_ListSearch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)
	now := time.Now().UTC()

	pattern := `%50\%\_off%`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customers WHERE (LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?)")).
		WithArgs(pattern, pattern, pattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs(pattern, pattern, pattern, 2, 2).
		WillReturnRows(customerRows(model.Customer{ID: 9, Name: "50%_OFF", Email: "s@x.com", Phone: "9123456789", CreatedAt: now, UpdatedAt: now}))

	p, err := repo.List(context.Background(), "50%_OFF", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.LastPage)
	require.Len(t, p.Items, 1)
	assert.Equal(t, int64(9), p.Items[0].ID)
}

func TestCustomersRepository_ListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs(10, 0).
		WillReturnRows(customerRows())

	p, err := repo.List(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.LastPage)
}

func TestCustomersRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)

	mock.ExpectQuery("FROM customers").
		WithArgs(int64(7)).
		WillReturnRows(customerRows())

	_, err := repo.GetByID(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomersRepository_ExistsByField(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM customers WHERE email = ? AND id <> ? LIMIT 1")).
		WithArgs("a@x.com", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM customers WHERE phone = ? AND id <> ? LIMIT 1")).
		WithArgs("9123456789", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	ok, err := repo.ExistsByField(context.Background(), "email", "a@x.com", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByField(context.Background(), "phone", "9123456789", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.ExistsByField(context.Background(), "name; DROP TABLE customers", "x", 0)
	assert.Error(t, err)
}

func TestCustomersRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)
	f := model.CustomerFields{Name: "Alice", Email: "alice@x.com", Phone: "9123456789"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").
		WithArgs(f.Name, f.Email, f.Phone).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), nil, f)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCustomersRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").
		WillReturnError(&mysql.MySQLError{
			Number:  1062,
			Message: "Duplicate entry 'alice@x.com' for key 'customers.uniq_customers_email'",
		})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), nil, model.CustomerFields{Name: "A", Email: "alice@x.com", Phone: "9123456789"})
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "email", dup.Field)
}

func TestCustomersRepository_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)
	name := "Bob"

	// empty patch touches nothing
	require.NoError(t, repo.Update(context.Background(), nil, 3, model.CustomerPatch{}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE customers SET name = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs("Bob", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), nil, 3, model.CustomerPatch{Name: &name}))
}

func TestCustomersRepository_UpdateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)
	phone := "9123456789"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE customers SET phone = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs(phone, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM customers WHERE id = ?")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Update(context.Background(), nil, 8, model.CustomerPatch{Phone: &phone}), ErrNotFound)
}

func TestCustomersRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customers WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), nil, 5), ErrNotFound)
}

func TestCustomersRepository_CreateIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomersRepository(db)
	f := model.CustomerFields{Name: "A", Email: "a@x.com", Phone: "9123456789"}

	mock.ExpectBegin()
	mock.ExpectExec("WHERE NOT EXISTS").
		WithArgs(f.Name, f.Email, f.Phone, f.Email, f.Phone).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("WHERE NOT EXISTS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("WHERE NOT EXISTS").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '9123456789' for key 'customers.uniq_customers_phone'"})
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx *sqlx.Tx) error {
		id, created, err := repo.CreateIfAbsent(context.Background(), tx, f)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(11), id)

		_, created, err = repo.CreateIfAbsent(context.Background(), tx, f)
		require.NoError(t, err)
		assert.False(t, created)

		_, created, err = repo.CreateIfAbsent(context.Background(), tx, f)
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	})
	require.NoError(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}
