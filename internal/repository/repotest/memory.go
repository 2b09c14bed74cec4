// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmoiron/sqlx"
)

// Customers is an in-memory CustomersRepository that enforces the same
// uniqueness rules as the UNIQUE indexes.
type Customers struct {
	Rows   map[int64]model.Customer
	NextID int64
	Fail   error // returned by writes and ListAll when set
}

func NewCustomers() *Customers { return &Customers{Rows: map[int64]model.Customer{}} }

func (m *Customers) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error { return fn(nil) }

func (m *Customers) sorted() []model.Customer {
	out := make([]model.Customer, 0, len(m.Rows))
	for _, c := range m.Rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Customers) List(ctx context.Context, search string, page, perPage int) (model.CustomerPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	hits := []model.Customer{}
	q := strings.ToLower(search)
	for _, c := range m.sorted() {
		if q == "" || strings.Contains(strings.ToLower(c.Name+"\x00"+c.Email+"\x00"+c.Phone), q) {
			hits = append(hits, c)
		}
	}
	start := (page - 1) * perPage
	if start > len(hits) {
		start = len(hits)
	}
	end := start + perPage
	if end > len(hits) {
		end = len(hits)
	}
	last := (len(hits) + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	return model.CustomerPage{Items: hits[start:end], Total: len(hits), Page: page, PerPage: perPage, LastPage: last}, nil
}

func (m *Customers) ListAll(ctx context.Context) ([]model.Customer, error) { return m.sorted(), m.Fail }

func (m *Customers) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	c, ok := m.Rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *Customers) ExistsByField(ctx context.Context, field, value string, excludeID int64) (bool, error) {
	for _, c := range m.Rows {
		if c.ID == excludeID {
			continue
		}
		if (field == "email" && c.Email == value) || (field == "phone" && c.Phone == value) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Customers) Create(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, error) {
	if m.Fail != nil {
		return 0, m.Fail
	}
	for _, c := range m.Rows {
		if c.Email == f.Email {
			return 0, &repository.DuplicateError{Field: "email"}
		}
		if c.Phone == f.Phone {
			return 0, &repository.DuplicateError{Field: "phone"}
		}
	}
	m.NextID++
	now := time.Now()
	m.Rows[m.NextID] = model.Customer{ID: m.NextID, Name: f.Name, Email: f.Email, Phone: f.Phone, CreatedAt: now, UpdatedAt: now}
	return m.NextID, nil
}

func (m *Customers) Update(ctx context.Context, tx *sqlx.Tx, id int64, p model.CustomerPatch) error {
	c, ok := m.Rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	m.Rows[id] = c
	return nil
}

func (m *Customers) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if _, ok := m.Rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.Rows, id)
	return nil
}

func (m *Customers) CreateIfAbsent(ctx context.Context, tx *sqlx.Tx, f model.CustomerFields) (int64, bool, error) {
	if m.Fail != nil {
		return 0, false, m.Fail
	}
	for _, c := range m.Rows {
		if c.Email == f.Email || c.Phone == f.Phone {
			return 0, false, nil
		}
	}
	id, err := m.Create(ctx, tx, f)
	return id, err == nil, err
}

// Outbox records inserted events in order.
type Outbox struct{ Events []model.CustomerEvent }

func (o *Outbox) InsertCustomerEvent(ctx context.Context, tx *sqlx.Tx, ev model.CustomerEvent) error {
	o.Events = append(o.Events, ev)
	return nil
}

var (
	_ repository.CustomersRepository = (*Customers)(nil)
	_ repository.OutboxRepository    = (*Outbox)(nil)
)
