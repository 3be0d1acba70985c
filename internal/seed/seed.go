// Package seed loads the fixed sample users into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/repository"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

// SampleUsers returns fresh copies of the five sample users, in insertion
// order.
func SampleUsers() []*model.User {
	return []*model.User{
		{
			Name: "John Doe", Age: 25, Gender: model.GenderMale, Country: "USA",
			DeviceType: model.DeviceMobile, LastLogin: dayPtr("2024-03-20"),
			RegistrationDate: day("2024-01-01"), ActiveInLastDays: 2,
			Logins: 5, ClickRate: 45, SubscriptionStatus: model.SubscriptionActive, PurchaseValue: 150,
		},
		{
			Name: "Jane Smith", Age: 30, Gender: model.GenderFemale, Country: "Canada",
			DeviceType: model.DeviceDesktop, LastLogin: dayPtr("2024-03-21"),
			RegistrationDate: day("2024-01-15"), ActiveInLastDays: 1,
			Logins: 10, ClickRate: 65, SubscriptionStatus: model.SubscriptionTrial, PurchaseValue: 75,
		},
		{
			Name: "Sam Johnson", Age: 22, Gender: model.GenderMale, Country: "UK",
			DeviceType: model.DeviceMobile, LastLogin: dayPtr("2024-03-15"),
			RegistrationDate: day("2024-02-01"), ActiveInLastDays: 7,
			Logins: 2, ClickRate: 20, SubscriptionStatus: model.SubscriptionInactive, PurchaseValue: 0,
		},
		{
			Name: "Anna Lee", Age: 28, Gender: model.GenderFemale, Country: "Australia",
			DeviceType: model.DeviceTablet, LastLogin: dayPtr("2024-03-22"),
			RegistrationDate: day("2024-02-15"), ActiveInLastDays: 0,
			Logins: 8, ClickRate: 50, SubscriptionStatus: model.SubscriptionActive, PurchaseValue: 200,
		},
		{
			Name: "Mike Brown", Age: 35, Gender: model.GenderMale, Country: "USA",
			DeviceType: model.DeviceDesktop, LastLogin: dayPtr("2024-03-21"),
			RegistrationDate: day("2024-01-20"), ActiveInLastDays: 1,
			Logins: 15, ClickRate: 75, SubscriptionStatus: model.SubscriptionActive, PurchaseValue: 300,
		},
	}
}

// Users inserts the sample users when the store holds no users yet.
// Running it again against a populated store does nothing. It reports
// whether anything was inserted.
func Users(ctx context.Context, repo repository.UserRepository, logger *slog.Logger) (bool, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: counting users: %w", err)
	}
	if n > 0 {
		logger.Debug("user store already populated, skipping seed", slog.Int("users", n))
		return false, nil
	}

	users := SampleUsers()
	if err := repo.InsertMany(ctx, users); err != nil {
		return false, fmt.Errorf("seed: inserting sample users: %w", err)
	}

	logger.Info("sample users inserted", slog.Int("count", len(users)))
	return true, nil
}
