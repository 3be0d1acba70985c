// Package query defines the store-neutral predicate that the filter compiler
// produces and the record stores execute.
//
// A Predicate is a conjunction (AND) of Conditions. Each Condition compares one
// whitelisted user field against a typed value. Stores never see user-supplied
// column names or patterns: Field values are constants declared here, and
// substring conditions carry a literal that each dialect escapes.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Field names a filterable user column. The string value is the column name
// used by the SQL stores.
type Field string

const (
	FieldName               Field = "name"
	FieldAge                Field = "age"
	FieldGender             Field = "gender"
	FieldCountry            Field = "country"
	FieldDeviceType         Field = "device_type"
	FieldLastLogin          Field = "last_login"
	FieldRegistrationDate   Field = "registration_date"
	FieldLogins             Field = "logins"
	FieldClickRate          Field = "click_rate"
	FieldSubscriptionStatus Field = "subscription_status"
	FieldPurchaseValue      Field = "purchase_value"
)

// Column returns the SQL column backing the field.
func (f Field) Column() string { return string(f) }

// Op is a comparison operator.
type Op int

const (
	OpEq           Op = iota // exact match
	OpGte                    // inclusive lower bound
	OpLte                    // inclusive upper bound
	OpContainsFold           // case-insensitive literal substring
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	case OpContainsFold:
		return "contains"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Condition is a single "field op value" constraint.
// Value is a string, a float64 or a time.Time.
type Condition struct {
	Field Field
	Op    Op
	Value any
}

func (c Condition) String() string {
	switch v := c.Value.(type) {
	case string:
		return fmt.Sprintf("%s %s %q", c.Field, c.Op, v)
	case time.Time:
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, v.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, v)
	}
}

// Predicate is the AND of its conditions. The zero value matches everything.
type Predicate struct {
	Conditions []Condition
}

// And appends a condition and returns the predicate for chaining.
func (p *Predicate) And(field Field, op Op, value any) *Predicate {
	p.Conditions = append(p.Conditions, Condition{Field: field, Op: op, Value: value})
	return p
}

// IsEmpty reports whether the predicate places no constraint at all.
func (p Predicate) IsEmpty() bool { return len(p.Conditions) == 0 }

// String renders the predicate for logs, e.g. `age >= 25 AND gender = "male"`.
func (p Predicate) String() string {
	if p.IsEmpty() {
		return "TRUE"
	}
	parts := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}
