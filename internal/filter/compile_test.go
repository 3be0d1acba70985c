package filter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/query"
)

var evalTime = time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// compileJSON parses and compiles a raw filter payload at evalTime.
func compileJSON(t *testing.T, raw string) (query.Predicate, error) {
	t.Helper()
	spec, err := Parse(json.RawMessage(raw))
	if err != nil {
		return query.Predicate{}, err
	}
	return Compile(spec, evalTime)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.Condition
	}{
		{"absent payload", ``, nil},
		{"null payload", `null`, nil},
		{"empty object", `{}`, nil},
		{"unknown keys are ignored", `{"favouriteColour":"blue"}`, nil},

		{"name substring", `{"name":"Jo"}`,
			[]query.Condition{{Field: query.FieldName, Op: query.OpContainsFold, Value: "Jo"}}},
		{"empty name", `{"name":""}`, nil},
		{"name with regex metacharacters stays literal", `{"name":"a.*"}`,
			[]query.Condition{{Field: query.FieldName, Op: query.OpContainsFold, Value: "a.*"}}},

		{"age range both bounds", `{"ageRange":{"min":25,"max":30}}`,
			[]query.Condition{
				{Field: query.FieldAge, Op: query.OpGte, Value: 25.0},
				{Field: query.FieldAge, Op: query.OpLte, Value: 30.0},
			}},
		{"age range max only has no lower bound", `{"ageRange":{"max":30}}`,
			[]query.Condition{{Field: query.FieldAge, Op: query.OpLte, Value: 30.0}}},
		{"age range numeric strings", `{"ageRange":{"min":"25","max":""}}`,
			[]query.Condition{{Field: query.FieldAge, Op: query.OpGte, Value: 25.0}}},
		{"age range zero is a supplied bound", `{"ageRange":{"min":0}}`,
			[]query.Condition{{Field: query.FieldAge, Op: query.OpGte, Value: 0.0}}},
		{"age range with nulls", `{"ageRange":{"min":null,"max":null}}`, nil},
		{"age range empty string", `{"ageRange":""}`, nil},

		{"gender all is no constraint", `{"gender":"all"}`, nil},
		{"gender empty is no constraint", `{"gender":""}`, nil},
		{"gender exact", `{"gender":"female"}`,
			[]query.Condition{{Field: query.FieldGender, Op: query.OpEq, Value: "female"}}},

		{"country substring", `{"country":"us"}`,
			[]query.Condition{{Field: query.FieldCountry, Op: query.OpContainsFold, Value: "us"}}},
		{"device type exact", `{"deviceType":"tablet"}`,
			[]query.Condition{{Field: query.FieldDeviceType, Op: query.OpEq, Value: "tablet"}}},
		{"device type all is matched literally", `{"deviceType":"all"}`,
			[]query.Condition{{Field: query.FieldDeviceType, Op: query.OpEq, Value: "all"}}},

		{"active in last days", `{"activeInLastDays":3}`,
			[]query.Condition{{Field: query.FieldLastLogin, Op: query.OpGte, Value: evalTime.AddDate(0, 0, -3)}}},
		{"active in last days zero", `{"activeInLastDays":0}`, nil},
		{"active in last days as string", `{"activeInLastDays":"7"}`,
			[]query.Condition{{Field: query.FieldLastLogin, Op: query.OpGte, Value: evalTime.AddDate(0, 0, -7)}}},

		{"registration date range", `{"registrationDateRange":{"min":"2024-01-01","max":"2024-02-01T00:00:00Z"}}`,
			[]query.Condition{
				{Field: query.FieldRegistrationDate, Op: query.OpGte, Value: date("2024-01-01")},
				{Field: query.FieldRegistrationDate, Op: query.OpLte, Value: date("2024-02-01")},
			}},
		{"registration date as unix millis", `{"registrationDateRange":{"min":1704067200000}}`,
			[]query.Condition{{Field: query.FieldRegistrationDate, Op: query.OpGte, Value: date("2024-01-01")}}},
		{"registration date range empty object", `{"registrationDateRange":{}}`, nil},

		{"logins lower bound", `{"logins":"10"}`,
			[]query.Condition{{Field: query.FieldLogins, Op: query.OpGte, Value: 10.0}}},
		{"logins zero is no constraint", `{"logins":0}`, nil},
		{"click rate lower bound", `{"clickRate":45.5}`,
			[]query.Condition{{Field: query.FieldClickRate, Op: query.OpGte, Value: 45.5}}},

		{"subscription all is no constraint", `{"subscriptionStatus":"all"}`, nil},
		{"subscription exact", `{"subscriptionStatus":"trial"}`,
			[]query.Condition{{Field: query.FieldSubscriptionStatus, Op: query.OpEq, Value: "trial"}}},

		{"purchase value range", `{"purchaseValue":{"min":"100","max":250.5}}`,
			[]query.Condition{
				{Field: query.FieldPurchaseValue, Op: query.OpGte, Value: 100.0},
				{Field: query.FieldPurchaseValue, Op: query.OpLte, Value: 250.5},
			}},
		{"purchase value max zero", `{"purchaseValue":{"max":0}}`,
			[]query.Condition{{Field: query.FieldPurchaseValue, Op: query.OpLte, Value: 0.0}}},

		{"fields compose by conjunction in a fixed order",
			`{"subscriptionStatus":"active","gender":"male","ageRange":{"min":30}}`,
			[]query.Condition{
				{Field: query.FieldAge, Op: query.OpGte, Value: 30.0},
				{Field: query.FieldGender, Op: query.OpEq, Value: "male"},
				{Field: query.FieldSubscriptionStatus, Op: query.OpEq, Value: "active"},
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compileJSON(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Conditions)
		})
	}
}

func TestCompile_InvalidValues(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{"payload is an array", `[1,2]`, "filters"},
		{"payload is a string", `"all"`, "filters"},
		{"malformed JSON", `{"name":`, "filters"},
		{"non-numeric age bound", `{"ageRange":{"min":"abc"}}`, "ageRange.min"},
		{"boolean age bound", `{"ageRange":{"max":true}}`, "ageRange.max"},
		{"age range not an object", `{"ageRange":"25-30"}`, "ageRange"},
		{"non-numeric logins", `{"logins":"ten"}`, "logins"},
		{"object click rate", `{"clickRate":{"gte":5}}`, "clickRate"},
		{"fractional days", `{"activeInLastDays":1.5}`, "activeInLastDays"},
		{"negative days", `{"activeInLastDays":-2}`, "activeInLastDays"},
		{"unparseable date", `{"registrationDateRange":{"min":"yesterday"}}`, "registrationDateRange.min"},
		{"non-numeric purchase bound", `{"purchaseValue":{"max":"lots"}}`, "purchaseValue.max"},
		{"name as object", `{"name":{"$regex":".*"}}`, "name"},
		{"gender as boolean", `{"gender":true}`, "gender"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileJSON(t, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrInvalidFilterValue), "error = %v, want ErrInvalidFilterValue", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestCompile_ActiveWindowMovesWithEvaluationTime(t *testing.T) {
	spec, err := Parse(json.RawMessage(`{"activeInLastDays":3}`))
	require.NoError(t, err)

	first, err := Compile(spec, evalTime)
	require.NoError(t, err)
	later, err := Compile(spec, evalTime.AddDate(0, 0, 10))
	require.NoError(t, err)

	assert.NotEqual(t, first.Conditions[0].Value, later.Conditions[0].Value)
}

func TestCompile_ProgrammaticSpec(t *testing.T) {
	spec := Spec{
		Name:     String("doe"),
		AgeRange: Range{Min: Number(18)},
		Logins:   Number(3),
	}

	p, err := Compile(spec, evalTime)
	require.NoError(t, err)

	assert.Equal(t, `name contains "doe" AND age >= 18 AND logins >= 3`, p.String())
}

func TestSpec_RoundTripsThroughJSON(t *testing.T) {
	raw := `{"ageRange":{"min":"25","max":30},"gender":"all"}`
	spec, err := Parse(json.RawMessage(raw))
	require.NoError(t, err)

	out, err := json.Marshal(spec)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)

	p1, err := Compile(spec, evalTime)
	require.NoError(t, err)
	p2, err := Compile(again, evalTime)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
