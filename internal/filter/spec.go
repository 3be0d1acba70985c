// Package filter compiles a client-supplied filter set into a query.Predicate.
//
// Every field of a Spec is optional. A field that is absent, null or empty
// places no constraint on its dimension, so the zero Spec matches every user.
// Compile is a pure function of its inputs: it keeps no state and never
// touches a store.
package filter

import (
	"bytes"
	"encoding/json"

	"github.com/sakif/user-segments/internal/apperror"
)

// Spec is the set of filter criteria a client may supply in one request.
type Spec struct {
	Name       Value `json:"name"`
	AgeRange   Range `json:"ageRange"`
	Gender     Value `json:"gender"`
	Country    Value `json:"country"`
	DeviceType Value `json:"deviceType"`

	ActiveInLastDays      Value `json:"activeInLastDays"`
	RegistrationDateRange Range `json:"registrationDateRange"`

	Logins             Value `json:"logins"`
	ClickRate          Value `json:"clickRate"`
	SubscriptionStatus Value `json:"subscriptionStatus"`
	PurchaseValue      Range `json:"purchaseValue"`
}

// Range is an optional {min, max} pair. Each bound is independent.
type Range struct {
	Min Value `json:"min"`
	Max Value `json:"max"`

	// notObject holds the raw input when a truthy non-object was sent in
	// place of the range, so Compile can reject it with the field name.
	notObject json.RawMessage
}

func (r *Range) UnmarshalJSON(b []byte) error {
	*r = Range{}

	v := Value{raw: b}
	if !v.Truthy() {
		return nil
	}
	if v.kind() != '{' {
		r.notObject = append(json.RawMessage(nil), b...)
		return nil
	}

	var bounds struct {
		Min Value `json:"min"`
		Max Value `json:"max"`
	}
	if err := json.Unmarshal(b, &bounds); err != nil {
		return err
	}
	r.Min, r.Max = bounds.Min, bounds.Max
	return nil
}

func (r Range) MarshalJSON() ([]byte, error) {
	if r.notObject != nil {
		return r.notObject, nil
	}
	return json.Marshal(struct {
		Min Value `json:"min"`
		Max Value `json:"max"`
	}{r.Min, r.Max})
}

// Parse decodes a raw filter payload. An absent or null payload yields the
// zero Spec; a payload that is not a JSON object is an InvalidFilterValue.
// Unknown keys are ignored.
func Parse(raw json.RawMessage) (Spec, error) {
	var spec Spec

	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return spec, nil
	}
	if b[0] != '{' {
		return spec, apperror.InvalidFilterValue("filters", "filters must be a JSON object")
	}
	if err := json.Unmarshal(b, &spec); err != nil {
		return Spec{}, apperror.InvalidFilterValue("filters", err.Error())
	}
	return spec, nil
}
