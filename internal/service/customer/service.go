// Package customer orchestrates validation, persistence and change events
// for customer records.
package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/customers-api/internal/csvio"
	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmehdipour/customers-api/internal/util"
	"github.com/jmehdipour/customers-api/internal/validation"
	"github.com/jmoiron/sqlx"
)

// Service is the only caller of the customers repository.
type Service struct {
	customers repository.CustomersRepository
	outbox    repository.OutboxRepository

	now func() time.Time
}

// New constructs the customer service.
func New(customersRepo repository.CustomersRepository, outboxRepo repository.OutboxRepository) *Service {
	return &Service{
		customers: customersRepo,
		outbox:    outboxRepo,
		now:       time.Now,
	}
}

// ImportResult counts what happened to the data rows of one import.
type ImportResult struct {
	Imported   int `json:"imported"`
	Incomplete int `json:"skipped_incomplete"`
	Duplicate  int `json:"skipped_duplicate"`
}

func (s *Service) List(ctx context.Context, search string, page, perPage int) (p model.CustomerPage, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("list", outcome(err)).Inc() }()

	p, err = s.customers.List(ctx, search, page, perPage)
	if err != nil {
		return model.CustomerPage{}, fmt.Errorf("list customers: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (c *model.Customer, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("get", outcome(err)).Inc() }()

	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id int64) (*model.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return c, nil
}

// Create validates in, inserts the record and its "created" event in one
// transaction, and returns the stored row.
func (s *Service) Create(ctx context.Context, in model.CustomerInput) (c *model.Customer, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("create", outcome(err)).Inc() }()

	if err := s.validate(ctx, in, validation.Create, 0); err != nil {
		return nil, err
	}

	fields := in.Fields()
	var id int64
	err = s.customers.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = s.customers.Create(ctx, tx, fields)
		if err != nil {
			return err
		}
		now := s.now()
		return s.emit(ctx, tx, model.CustomerCreated, id, &model.Customer{
			ID: id, Name: fields.Name, Email: fields.Email, Phone: fields.Phone,
			CreatedAt: now, UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, wrapWrite("create customer", err)
	}

	return s.get(ctx, id)
}

// Update applies the fields present in `in` to record id. Absent fields keep
// their stored values.
func (s *Service) Update(ctx context.Context, id int64, in model.CustomerInput) (c *model.Customer, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("update", outcome(err)).Inc() }()

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validate(ctx, in, validation.Update, id); err != nil {
		return nil, err
	}

	patch := in.Patch()
	if patch.Empty() {
		return current, nil
	}

	next := *current
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.Phone != nil {
		next.Phone = *patch.Phone
	}
	next.UpdatedAt = s.now()

	err = s.customers.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.customers.Update(ctx, tx, id, patch); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.CustomerUpdated, id, &next)
	})
	if err != nil {
		return nil, wrapWrite("update customer", err)
	}

	return s.get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("delete", outcome(err)).Inc() }()

	err = s.customers.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.customers.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.CustomerDeleted, id, nil)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	return nil
}

// Import inserts every complete row whose email and phone are both unused.
// Rows are not format-validated. All inserts share one transaction, so a
// store failure imports nothing.
func (s *Service) Import(ctx context.Context, rows []csvio.Row) (res ImportResult, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("import", outcome(err)).Inc() }()

	err = s.customers.InTx(ctx, func(tx *sqlx.Tx) error {
		res = ImportResult{}
		for _, row := range rows {
			if !row.Complete() {
				res.Incomplete++
				continue
			}

			fields := row.Fields()
			id, created, err := s.customers.CreateIfAbsent(ctx, tx, fields)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			if !created {
				res.Duplicate++
				continue
			}

			now := s.now()
			if err := s.emit(ctx, tx, model.CustomerImported, id, &model.Customer{
				ID: id, Name: fields.Name, Email: fields.Email, Phone: fields.Phone,
				CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return err
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import customers: %w", err)
	}

	metrics.ImportRowsTotal.WithLabelValues("imported").Add(float64(res.Imported))
	metrics.ImportRowsTotal.WithLabelValues("incomplete").Add(float64(res.Incomplete))
	metrics.ImportRowsTotal.WithLabelValues("duplicate").Add(float64(res.Duplicate))

	return res, nil
}

// Export returns all records in the store's default order.
func (s *Service) Export(ctx context.Context) (cs []model.Customer, err error) {
	defer func() { metrics.OpsTotal.WithLabelValues("export", outcome(err)).Inc() }()

	cs, err = s.customers.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export customers: %w", err)
	}
	metrics.ExportRowsTotal.Add(float64(len(cs)))
	return cs, nil
}

func (s *Service) validate(ctx context.Context, in model.CustomerInput, mode validation.Mode, excludeID int64) error {
	errs, err := validation.ValidateCustomer(ctx, in, mode, excludeID, s.isUnique)
	if err != nil {
		return fmt.Errorf("validate customer: %w", err)
	}
	if errs != nil {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (s *Service) isUnique(ctx context.Context, field, value string, excludeID int64) (bool, error) {
	exists, err := s.customers.ExistsByField(ctx, field, value, excludeID)
	return !exists, err
}

func (s *Service) emit(ctx context.Context, tx *sqlx.Tx, typ model.CustomerEventType, id int64, c *model.Customer) error {
	return s.outbox.InsertCustomerEvent(ctx, tx, model.CustomerEvent{
		ID:         util.NewULID(),
		Type:       typ,
		CustomerID: id,
		Customer:   c,
		OccurredAt: s.now().UTC(),
	})
}

// wrapWrite reports a UNIQUE index rejection as the same field error the
// validator would have produced.
func wrapWrite(op string, err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return newFieldError(dup.Field, "The "+dup.Field+" has already been taken.")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
