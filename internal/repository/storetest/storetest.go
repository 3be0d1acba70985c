// Package storetest holds the filter cases every record store must agree
// on. Each store's tests seed the same users, run the same compiled filters
// and expect the same names in the same order.
package storetest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sakif/user-segments/internal/filter"
	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
)

// EvalTime is the "now" the cases are written against.
var EvalTime = time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC)

// FilterCase is one raw filter payload and the names it must select from
// the sample users plus InternationalUsers, newest first.
type FilterCase struct {
	Name   string
	Filter string
	Want   []string
}

// InternationalUsers returns users whose names and countries need more than
// ASCII case folding. Insert them after the sample users.
func InternationalUsers() []*model.User {
	login := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*model.User{
		{
			Name: "José Álvarez", Age: 41, Gender: model.GenderMale, Country: "España",
			DeviceType: model.DeviceMobile, LastLogin: &login,
			RegistrationDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			Logins:           3, ClickRate: 10, SubscriptionStatus: model.SubscriptionInactive,
		},
		{
			Name: "ÉLODIE Durand", Age: 19, Gender: model.GenderFemale, Country: "FRANCE",
			DeviceType: model.DeviceTablet,
			RegistrationDate: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
			Logins:           1, ClickRate: 5, SubscriptionStatus: model.SubscriptionTrial,
		},
	}
}

const (
	elodie = "ÉLODIE Durand"
	jose   = "José Álvarez"
)

// FilterCases returns the shared case table.
func FilterCases() []FilterCase {
	everyone := []string{elodie, jose, "Mike Brown", "Anna Lee", "Sam Johnson", "Jane Smith", "John Doe"}

	return []FilterCase{
		{"empty filter", `{}`, everyone},
		{"age range is inclusive", `{"ageRange":{"min":25,"max":30}}`,
			[]string{"Anna Lee", "Jane Smith", "John Doe"}},
		{"age max only", `{"ageRange":{"max":"25"}}`,
			[]string{elodie, "Sam Johnson", "John Doe"}},
		{"name substring is case-insensitive", `{"name":"jo"}`,
			[]string{jose, "Sam Johnson", "John Doe"}},
		{"name regex metacharacters are literal", `{"name":"J.hn"}`, []string{}},
		{"name percent is literal", `{"name":"%"}`, []string{}},
		{"name underscore is literal", `{"name":"_"}`, []string{}},
		{"accented name upper-cased", `{"name":"JOSÉ"}`, []string{jose}},
		{"accented name lower-cased", `{"name":"álvarez"}`, []string{jose}},
		{"accented capital matches lower-case filter", `{"name":"élodie"}`, []string{elodie}},
		{"accented country upper-cased", `{"country":"ESPAÑA"}`, []string{jose}},
		{"gender all", `{"gender":"all"}`, everyone},
		{"gender female", `{"gender":"female"}`, []string{elodie, "Anna Lee", "Jane Smith"}},
		{"country substring", `{"country":"us"}`,
			[]string{"Mike Brown", "Anna Lee", "John Doe"}},
		{"country folds ASCII", `{"country":"france"}`, []string{elodie}},
		{"device type", `{"deviceType":"desktop"}`, []string{"Mike Brown", "Jane Smith"}},
		{"active in last 1 day", `{"activeInLastDays":1}`, []string{"Anna Lee"}},
		{"active in last 3 days", `{"activeInLastDays":3}`,
			[]string{"Mike Brown", "Anna Lee", "Jane Smith", "John Doe"}},
		{"never logged in is never active", `{"activeInLastDays":365}`,
			[]string{jose, "Mike Brown", "Anna Lee", "Sam Johnson", "Jane Smith", "John Doe"}},
		{"registration window", `{"registrationDateRange":{"min":"2024-01-15","max":"2024-02-01"}}`,
			[]string{"Mike Brown", "Sam Johnson", "Jane Smith"}},
		{"logins lower bound", `{"logins":10}`, []string{"Mike Brown", "Jane Smith"}},
		{"click rate lower bound", `{"clickRate":"50"}`,
			[]string{"Mike Brown", "Anna Lee", "Jane Smith"}},
		{"subscription status", `{"subscriptionStatus":"active"}`,
			[]string{"Mike Brown", "Anna Lee", "John Doe"}},
		{"purchase range", `{"purchaseValue":{"min":100,"max":200}}`,
			[]string{"Anna Lee", "John Doe"}},
		{"purchase max zero", `{"purchaseValue":{"max":0}}`, []string{elodie, jose, "Sam Johnson"}},
		{"min above max selects nobody", `{"ageRange":{"min":40,"max":20}}`, []string{}},
		{"combined", `{"gender":"male","subscriptionStatus":"active","ageRange":{"min":30}}`,
			[]string{"Mike Brown"}},
	}
}

// Compile parses and compiles a raw filter payload at EvalTime, failing the
// test on error.
func Compile(t *testing.T, raw string) query.Predicate {
	t.Helper()
	spec, err := filter.Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", raw, err)
	}
	p, err := filter.Compile(spec, EvalTime)
	if err != nil {
		t.Fatalf("Compile(%s) error = %v", raw, err)
	}
	return p
}

// Names returns the user names in order.
func Names(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}
