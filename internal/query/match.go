package query

import (
	"strings"
	"time"

	"github.com/sakif/user-segments/internal/model"
)

// Match evaluates the predicate against a single user in process.
// It implements the same semantics the SQL dialects render: inclusive
// bounds, exact equality, and case-insensitive literal substrings. A null
// field (a user who never logged in) fails every condition on that field.
func (p Predicate) Match(u *model.User) bool {
	for _, c := range p.Conditions {
		if !c.Match(u) {
			return false
		}
	}
	return true
}

// Match evaluates one condition against a user.
func (c Condition) Match(u *model.User) bool {
	got, ok := fieldValue(u, c.Field)
	if !ok {
		return false
	}

	if c.Op == OpContainsFold {
		s, ok1 := got.(string)
		sub, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}

	cmp, ok := compare(got, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func fieldValue(u *model.User, f Field) (any, bool) {
	switch f {
	case FieldName:
		return u.Name, true
	case FieldAge:
		return float64(u.Age), true
	case FieldGender:
		return u.Gender, true
	case FieldCountry:
		return u.Country, true
	case FieldDeviceType:
		return u.DeviceType, true
	case FieldLastLogin:
		if u.LastLogin == nil {
			return nil, false
		}
		return *u.LastLogin, true
	case FieldRegistrationDate:
		return u.RegistrationDate, true
	case FieldLogins:
		return float64(u.Logins), true
	case FieldClickRate:
		return u.ClickRate, true
	case FieldSubscriptionStatus:
		return u.SubscriptionStatus, true
	case FieldPurchaseValue:
		return u.PurchaseValue, true
	}
	return nil, false
}

// compare returns -1, 0 or +1 for a against b, and false when the two
// values are not of the same comparable kind.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
