package model

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// OptionalString records whether a request field was sent at all, sent as
// null, or sent with a value. Non-string JSON scalars keep their literal text
// and set NotString.
type OptionalString struct {
	Present   bool
	Null      bool
	NotString bool
	Value     string
}

func Some(v string) OptionalString { return OptionalString{Present: true, Value: v} }

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Present = true
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.Null = true
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &o.Value)
	}
	o.NotString = true
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		return nil
	}
	o.Value = string(b)
	return nil
}

// Blank reports a missing, null, or whitespace-only value.
func (o OptionalString) Blank() bool {
	return !o.Present || o.Null || strings.TrimSpace(o.Value) == ""
}

// CustomerInput is the decoded body of a create or update request.
type CustomerInput struct {
	Name  OptionalString `json:"name"`
	Email OptionalString `json:"email"`
	Phone OptionalString `json:"phone"`
}

func (in CustomerInput) Fields() CustomerFields {
	return CustomerFields{Name: in.Name.Value, Email: in.Email.Value, Phone: in.Phone.Value}
}

func (in CustomerInput) Patch() CustomerPatch {
	var p CustomerPatch
	if in.Name.Present {
		v := in.Name.Value
		p.Name = &v
	}
	if in.Email.Present {
		v := in.Email.Value
		p.Email = &v
	}
	if in.Phone.Present {
		v := in.Phone.Value
		p.Phone = &v
	}
	return p
}
