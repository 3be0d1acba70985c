package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/query"
)

// All is the sentinel accepted by gender and subscriptionStatus meaning
// "no constraint on this field".
const All = "all"

// maxActiveDays bounds activeInLastDays to something a calendar can subtract.
const maxActiveDays = 1_000_000

// Compile turns a Spec into a predicate, evaluated relative to now.
//
// Range bounds (ageRange, registrationDateRange, purchaseValue) emit only
// the bounds that were supplied; a lone max means "no lower bound", never
// "min = 0". Both bounds are inclusive. Scalar lower bounds (logins,
// clickRate, activeInLastDays) apply only when truthy, so 0 means "any".
//
// The first value that cannot be coerced aborts compilation with an
// apperror.ErrInvalidFilterValue naming the field.
func Compile(spec Spec, now time.Time) (query.Predicate, error) {
	c := &compiler{}

	c.contains("name", query.FieldName, spec.Name)
	c.numberRange("ageRange", query.FieldAge, spec.AgeRange)
	c.exact("gender", query.FieldGender, spec.Gender, true)
	c.contains("country", query.FieldCountry, spec.Country)

	c.exact("deviceType", query.FieldDeviceType, spec.DeviceType, false)
	c.activeSince("activeInLastDays", spec.ActiveInLastDays, now)
	c.timeRange("registrationDateRange", query.FieldRegistrationDate, spec.RegistrationDateRange)

	c.atLeast("logins", query.FieldLogins, spec.Logins)
	c.atLeast("clickRate", query.FieldClickRate, spec.ClickRate)
	c.exact("subscriptionStatus", query.FieldSubscriptionStatus, spec.SubscriptionStatus, true)
	c.numberRange("purchaseValue", query.FieldPurchaseValue, spec.PurchaseValue)

	if c.err != nil {
		return query.Predicate{}, c.err
	}
	return c.p, nil
}

// compiler accumulates conditions and stops at the first error.
type compiler struct {
	p   query.Predicate
	err error
}

func (c *compiler) contains(name string, f query.Field, v Value) {
	if c.err != nil || !v.Truthy() {
		return
	}
	s, err := v.AsString(name)
	if err != nil {
		c.err = err
		return
	}
	c.p.And(f, query.OpContainsFold, s)
}

func (c *compiler) exact(name string, f query.Field, v Value, allowAll bool) {
	if c.err != nil || !v.Truthy() {
		return
	}
	s, err := v.AsString(name)
	if err != nil {
		c.err = err
		return
	}
	if allowAll && s == All {
		return
	}
	c.p.And(f, query.OpEq, s)
}

func (c *compiler) atLeast(name string, f query.Field, v Value) {
	if c.err != nil || !v.Truthy() {
		return
	}
	n, err := v.AsNumber(name)
	if err != nil {
		c.err = err
		return
	}
	c.p.And(f, query.OpGte, n)
}

func (c *compiler) numberRange(name string, f query.Field, r Range) {
	if c.err != nil {
		return
	}
	if r.notObject != nil {
		c.err = apperror.InvalidFilterValue(name, "expected an object with min and/or max")
		return
	}
	if r.Min.Supplied() {
		n, err := r.Min.AsNumber(name + ".min")
		if err != nil {
			c.err = err
			return
		}
		c.p.And(f, query.OpGte, n)
	}
	if r.Max.Supplied() {
		n, err := r.Max.AsNumber(name + ".max")
		if err != nil {
			c.err = err
			return
		}
		c.p.And(f, query.OpLte, n)
	}
}

func (c *compiler) timeRange(name string, f query.Field, r Range) {
	if c.err != nil {
		return
	}
	if r.notObject != nil {
		c.err = apperror.InvalidFilterValue(name, "expected an object with min and/or max")
		return
	}
	if r.Min.Supplied() {
		t, err := r.Min.AsTime(name + ".min")
		if err != nil {
			c.err = err
			return
		}
		c.p.And(f, query.OpGte, t)
	}
	if r.Max.Supplied() {
		t, err := r.Max.AsTime(name + ".max")
		if err != nil {
			c.err = err
			return
		}
		c.p.And(f, query.OpLte, t)
	}
}

// activeSince constrains lastLogin to the last N calendar days before now.
// The cutoff moves with now, so the same filter selects different users on
// different days.
func (c *compiler) activeSince(name string, v Value, now time.Time) {
	if c.err != nil || !v.Truthy() {
		return
	}
	n, err := v.AsNumber(name)
	if err != nil {
		c.err = err
		return
	}
	if n < 0 || n > maxActiveDays || n != math.Trunc(n) {
		c.err = apperror.InvalidFilterValue(name, fmt.Sprintf("%v is not a whole number of days", n))
		return
	}
	c.p.And(query.FieldLastLogin, query.OpGte, now.AddDate(0, 0, -int(n)))
}
