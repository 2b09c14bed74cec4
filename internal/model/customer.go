package model

import "time"

// Customer is the DB entity persisted in the customers table.
type Customer struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Email     string    `db:"email"      json:"email"`
	Phone     string    `db:"phone"      json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CustomerFields is a full set of writable columns (create, import).
type CustomerFields struct {
	Name  string
	Email string
	Phone string
}

// CustomerPatch carries the columns of a partial update; nil means unchanged.
type CustomerPatch struct {
	Name  *string
	Email *string
	Phone *string
}

func (p CustomerPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

// CustomerPage is one page of a filtered listing.
type CustomerPage struct {
	Items    []Customer
	Total    int
	Page     int
	PerPage  int
	LastPage int
}
