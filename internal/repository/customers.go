package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
)

const mysqlErrDupEntry = 1062

var ErrNotFound = errors.New("customer not found")

// DuplicateError is returned when a UNIQUE index rejects a write.
type DuplicateError struct {
	Field string // email | phone
}

func (e *DuplicateError) Error() string { return "duplicate " + e.Field }

type CustomersRepository interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	List(ctx context.Context, search string, page, perPage int) (model.CustomerPage, error)
	ListAll(ctx context.Context) ([]model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	ExistsByField(ctx context.Context, field, value string, excludeID int64) (bool, error)

	Create(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, error)
	Update(ctx context.Context, tx *sqlx.Tx, id int64, p model.CustomerPatch) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	CreateIfAbsent(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, bool, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerCols = `id, name, email, phone, created_at, updated_at`

// uniqueColumns whitelists the columns ExistsByField may interpolate.
var uniqueColumns = map[string]string{
	"email": "email",
	"phone": "phone",
}

func (r *CustomersRepositoryImpl) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, r.db, nil, fn)
}

// List returns one page ordered by id. A non-empty search matches name, email
// or phone as a case-insensitive substring.
func (r *CustomersRepositoryImpl) List(ctx context.Context, search string, page, perPage int) (model.CustomerPage, error) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}

	where := ""
	var args []any
	if search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where = " WHERE (LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?)"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM customers"+where, args...); err != nil {
		return model.CustomerPage{}, fmt.Errorf("count customers: %w", err)
	}

	items := make([]model.Customer, 0, perPage)
	q := "SELECT " + customerCols + " FROM customers" + where + " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, perPage, (page-1)*perPage)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return model.CustomerPage{}, fmt.Errorf("select customers: %w", err)
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	return model.CustomerPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}, nil
}

// ListAll returns every customer in the store's default order.
func (r *CustomersRepositoryImpl) ListAll(ctx context.Context) ([]model.Customer, error) {
	rows := []model.Customer{}
	if err := r.db.SelectContext(ctx, &rows, "SELECT "+customerCols+" FROM customers"); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT `+customerCols+`
		  FROM customers
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ExistsByField reports whether another customer (id != excludeID) already
// holds value in the given unique column.
func (r *CustomersRepositoryImpl) ExistsByField(ctx context.Context, field, value string, excludeID int64) (bool, error) {
	col, ok := uniqueColumns[field]
	if !ok {
		return false, fmt.Errorf("field %q is not unique", field)
	}

	var one int
	err := r.db.GetContext(ctx, &one,
		"SELECT 1 FROM customers WHERE "+col+" = ? AND id <> ? LIMIT 1", value, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *CustomersRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, error) {
	const q = `
		INSERT INTO customers
		    (name, email, phone, created_at, updated_at)
		VALUES
		    (?,    ?,     ?,     NOW(),      NOW())
	`
	var id int64
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, f.Name, f.Email, f.Phone)
		if err != nil {
			return mapDuplicate(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Update writes only the non-nil columns of p. ErrNotFound when id is gone.
func (r *CustomersRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, id int64, p model.CustomerPatch) error {
	if p.Empty() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *p.Email)
	}
	if p.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *p.Phone)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	q := "UPDATE customers SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return mapDuplicate(err)
		}
		n, err := res.RowsAffected()
		if err != nil || n > 0 {
			return err
		}

		// MySQL reports 0 for a row whose values did not change
		var one int
		err = tx.GetContext(ctx, &one, `SELECT 1 FROM customers WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

func (r *CustomersRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateIfAbsent inserts f unless a customer already has the same email OR
// the same phone. created is false when the row was skipped.
func (r *CustomersRepositoryImpl) CreateIfAbsent(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, bool, error) {
	const q = `
		INSERT INTO customers (name, email, phone, created_at, updated_at)
		SELECT ?, ?, ?, NOW(), NOW() FROM DUAL
		 WHERE NOT EXISTS (SELECT 1 FROM customers WHERE email = ? OR phone = ?)
	`
	var (
		id      int64
		created bool
	)
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, f.Name, f.Email, f.Phone, f.Email, f.Phone)
		if err != nil {
			var dup *DuplicateError
			if errors.As(mapDuplicate(err), &dup) {
				return nil
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		id, err = res.LastInsertId()
		created = err == nil
		return err
	})
	return id, created, err
}

// mapDuplicate turns a MySQL duplicate-key error into a *DuplicateError.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlErrDupEntry {
		return err
	}
	switch {
	case strings.Contains(me.Message, "email"):
		return &DuplicateError{Field: "email"}
	case strings.Contains(me.Message, "phone"):
		return &DuplicateError{Field: "phone"}
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
