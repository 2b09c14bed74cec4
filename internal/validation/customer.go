// Package validation holds the field rules applied to customer writes.
package validation

import (
	"context"
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/jmehdipour/customers-api/internal/model"
)

const MaxNameLength = 255

var (
	tenDigits    = regexp.MustCompile(`^[0-9]{10}$`)
	phonePattern = regexp.MustCompile(`^[7-9][0-9]{9}$`)
)

type Mode int

const (
	Create Mode = iota
	Update
)

// Errors maps a field name to its human-readable violations.
type Errors map[string][]string

func (e Errors) Add(field, msg string) { e[field] = append(e[field], msg) }

// UniqueFunc reports whether value is free in the given column, ignoring the
// record with excludeID.
type UniqueFunc func(ctx context.Context, field, value string, excludeID int64) (bool, error)

// ValidateCustomer checks in against the rules for mode. On Update only the
// fields present in the request are checked and excludeID is the record
// being changed. A non-nil error means the uniqueness lookup failed.
func ValidateCustomer(ctx context.Context, in model.CustomerInput, mode Mode, excludeID int64, unique UniqueFunc) (Errors, error) {
	errs := Errors{}

	if checked(in.Name, mode) {
		validateName(in.Name, errs)
	}

	if checked(in.Email, mode) && required("email", in.Email, errs) {
		if ValidEmail(in.Email.Value) {
			if err := checkUnique(ctx, "email", in.Email.Value, excludeID, unique, errs); err != nil {
				return nil, err
			}
		} else {
			errs.Add("email", "The email field must be a valid email address.")
		}
	}

	if checked(in.Phone, mode) && required("phone", in.Phone, errs) {
		ok := true
		if !tenDigits.MatchString(in.Phone.Value) {
			errs.Add("phone", "The phone field must be 10 digits.")
			ok = false
		}
		if !ValidPhone(in.Phone.Value) {
			errs.Add("phone", "The phone field format is invalid.")
			ok = false
		}
		if ok {
			if err := checkUnique(ctx, "phone", in.Phone.Value, excludeID, unique, errs); err != nil {
				return nil, err
			}
		}
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

// ValidPhone reports whether s matches ^[7-9][0-9]{9}$.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// ValidEmail accepts a bare addr-spec such as user@example.com. Display
// names and angle brackets are rejected.
func ValidEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

func checked(f model.OptionalString, mode Mode) bool {
	return mode == Create || f.Present
}

func required(field string, f model.OptionalString, errs Errors) bool {
	if f.Blank() {
		errs.Add(field, "The "+field+" field is required.")
		return false
	}
	return true
}

func validateName(f model.OptionalString, errs Errors) {
	if !required("name", f, errs) {
		return
	}
	if f.NotString {
		errs.Add("name", "The name field must be a string.")
		return
	}
	if utf8.RuneCountInString(f.Value) > MaxNameLength {
		errs.Add("name", "The name field must not be greater than 255 characters.")
	}
}

func checkUnique(ctx context.Context, field, value string, excludeID int64, unique UniqueFunc, errs Errors) error {
	if unique == nil {
		return nil
	}
	free, err := unique(ctx, field, value, excludeID)
	if err != nil {
		return err
	}
	if !free {
		errs.Add(field, "The "+field+" has already been taken.")
	}
	return nil
}
