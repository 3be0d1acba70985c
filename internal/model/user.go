// Package model defines the records the service stores and returns: users
// with their engagement metrics, and saved segments.
package model

import (
	"strings"
	"time"

	"github.com/sakif/user-segments/internal/apperror"
)

// Enumerated field values. The empty string means "unspecified" for every
// enumerated field, so a zero-value User is always queryable.
const (
	GenderMale   = "male"
	GenderFemale = "female"

	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"

	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
	SubscriptionTrial    = "trial"
)

// User is a user profile together with the behavioural and engagement
// metrics that segments filter on.
//
// WHY *time.Time FOR LastLogin?
// A user who never logged in has no last login. Every other field has a
// well-defined zero value (0, "", registration = creation time), so
// LastLogin is the only nullable column. A nil LastLogin never satisfies a
// "logged in since" constraint.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`

	// Demographics / behaviour
	Country          string     `json:"country"`
	DeviceType       string     `json:"deviceType"`
	LastLogin        *time.Time `json:"lastLogin"`
	RegistrationDate time.Time  `json:"registrationDate"`
	ActiveInLastDays int        `json:"activeInLastDays"`

	// Engagement
	Logins             int     `json:"logins"`
	ClickRate          float64 `json:"clickRate"` // 0–100
	SubscriptionStatus string  `json:"subscriptionStatus"`
	PurchaseValue      float64 `json:"purchaseValue"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the required fields and the enumerated domains.
// Stores call it before inserting so no row can violate the schema.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return apperror.MissingField("name")
	}
	if u.Age < 0 {
		return apperror.ValidationFailed("age", "age must not be negative")
	}
	if !oneOf(u.Gender, "", GenderMale, GenderFemale) {
		return apperror.ValidationFailed("gender", "gender must be male, female or empty")
	}
	if !oneOf(u.DeviceType, "", DeviceMobile, DeviceDesktop, DeviceTablet) {
		return apperror.ValidationFailed("deviceType", "deviceType must be mobile, desktop, tablet or empty")
	}
	if !oneOf(u.SubscriptionStatus, "", SubscriptionActive, SubscriptionInactive, SubscriptionTrial) {
		return apperror.ValidationFailed("subscriptionStatus", "subscriptionStatus must be active, inactive, trial or empty")
	}
	if u.ClickRate < 0 || u.ClickRate > 100 {
		return apperror.ValidationFailed("clickRate", "clickRate must be between 0 and 100")
	}
	return nil
}

// ApplyDefaults fills the store-managed defaults: the registration date
// falls back to the creation time.
func (u *User) ApplyDefaults(now time.Time) {
	if u.RegistrationDate.IsZero() {
		u.RegistrationDate = now
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
