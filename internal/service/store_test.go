package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/tildra/tildra/internal/repository"
)

// fakeStore is an in-memory stand-in for repository.Queries. Each method
// mirrors the guard conditions of the real SQL statement it replaces, so
// the services can be exercised against the same conditional-update
// semantics the database enforces.
type fakeStore struct {
	users   map[string]*repository.User // keyed by clerk id
	history map[string]int              // saved history rows per clerk id
}

func newFakeStore(users ...repository.User) *fakeStore {
	s := &fakeStore{
		users:   make(map[string]*repository.User),
		history: make(map[string]int),
	}
	for i := range users {
		u := users[i]
		s.users[u.ClerkID] = &u
	}
	return s
}

func (s *fakeStore) GetUserByClerkID(_ context.Context, clerkID string) (repository.User, error) {
	u, ok := s.users[clerkID]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (s *fakeStore) CreateUser(_ context.Context, arg repository.CreateUserParams) (repository.User, error) {
	u := repository.User{
		ClerkID:              arg.ClerkID,
		Email:                arg.Email,
		FirstName:            arg.FirstName,
		LastName:             arg.LastName,
		ProfileImageUrl:      arg.ProfileImageUrl,
		Plan:                 arg.Plan,
		SummaryLimit:         arg.SummaryLimit,
		UsageResetAt:         arg.UsageResetAt,
		Theme:                "system",
		DefaultSummaryLength: "standard",
		AutoSaveHistory:      true,
	}
	s.users[u.ClerkID] = &u
	return u, nil
}

func (s *fakeStore) RelinkUserClerkID(_ context.Context, arg repository.RelinkUserClerkIDParams) (repository.User, error) {
	for id, u := range s.users {
		if u.Email != arg.Email {
			continue
		}
		delete(s.users, id)
		u.ClerkID = arg.ClerkID
		if arg.FirstName.Valid {
			u.FirstName = arg.FirstName
		}
		if arg.LastName.Valid {
			u.LastName = arg.LastName
		}
		if arg.ProfileImageUrl.Valid {
			u.ProfileImageUrl = arg.ProfileImageUrl
		}
		s.users[arg.ClerkID] = u
		// History rows follow the key, as the FK cascade does.
		if n, ok := s.history[id]; ok && id != arg.ClerkID {
			s.history[arg.ClerkID] += n
			delete(s.history, id)
		}
		return *u, nil
	}
	return repository.User{}, sql.ErrNoRows
}

func (s *fakeStore) UpdateUserProfile(_ context.Context, arg repository.UpdateUserProfileParams) (repository.User, error) {
	u, ok := s.users[arg.ClerkID]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	if arg.Email.Valid {
		u.Email = arg.Email.String
	}
	if arg.FirstName.Valid {
		u.FirstName = arg.FirstName
	}
	if arg.LastName.Valid {
		u.LastName = arg.LastName
	}
	if arg.ProfileImageUrl.Valid {
		u.ProfileImageUrl = arg.ProfileImageUrl
	}
	return *u, nil
}

func (s *fakeStore) UpdateUserSettings(_ context.Context, arg repository.UpdateUserSettingsParams) (repository.User, error) {
	u, ok := s.users[arg.ClerkID]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	if arg.Theme.Valid {
		u.Theme = arg.Theme.String
	}
	if arg.DefaultSummaryLength.Valid {
		u.DefaultSummaryLength = arg.DefaultSummaryLength.String
	}
	if arg.AutoSaveHistory.Valid {
		u.AutoSaveHistory = arg.AutoSaveHistory.Bool
	}
	return *u, nil
}

func (s *fakeStore) ResetDailyUsage(_ context.Context, clerkID string, cutoff, now time.Time) (repository.User, error) {
	u, ok := s.users[clerkID]
	if !ok || u.Plan != "free" || !u.UsageResetAt.Before(cutoff) {
		return repository.User{}, sql.ErrNoRows
	}
	u.SummariesUsed = 0
	u.UsageResetAt = now
	return *u, nil
}

func (s *fakeStore) IncrementUsage(_ context.Context, clerkID string) (repository.IncrementUsageRow, error) {
	u, ok := s.users[clerkID]
	if !ok {
		return repository.IncrementUsageRow{}, sql.ErrNoRows
	}
	u.SummariesUsed++
	u.TotalSummariesMade++
	return repository.IncrementUsageRow{
		SummariesUsed:      u.SummariesUsed,
		TotalSummariesMade: u.TotalSummariesMade,
	}, nil
}

func (s *fakeStore) SetStripeCustomerID(_ context.Context, clerkID, customerID string) (repository.User, error) {
	u, ok := s.users[clerkID]
	if !ok || u.StripeCustomerID.Valid {
		return repository.User{}, sql.ErrNoRows
	}
	u.StripeCustomerID = sql.NullString{String: customerID, Valid: true}
	return *u, nil
}

func (s *fakeStore) UpgradeUserToPremium(_ context.Context, arg repository.UpgradeUserToPremiumParams) (repository.User, error) {
	u := s.findByCustomer(arg.StripeCustomerID)
	if u == nil {
		return repository.User{}, sql.ErrNoRows
	}
	u.Plan = "premium"
	u.SummaryLimit = arg.SummaryLimit
	u.SummariesUsed = 0
	u.StripeSubscriptionID = sql.NullString{String: arg.StripeSubscriptionID, Valid: true}
	u.StripePriceID = sql.NullString{String: arg.StripePriceID, Valid: true}
	u.StripeCurrentPeriodEnd = sql.NullTime{Time: arg.PeriodEnd, Valid: true}
	u.UsageResetAt = arg.WindowStart
	return *u, nil
}

func (s *fakeStore) RenewPremiumUsage(_ context.Context, customerID string, periodEnd time.Time) (repository.User, error) {
	u := s.findByCustomer(customerID)
	if u == nil || u.Plan != "premium" {
		return repository.User{}, sql.ErrNoRows
	}
	u.SummariesUsed = 0
	u.StripeCurrentPeriodEnd = sql.NullTime{Time: periodEnd, Valid: true}
	u.UsageResetAt = periodEnd
	return *u, nil
}

func (s *fakeStore) DeleteSummaryHistoryByUser(_ context.Context, clerkID string) (int64, error) {
	n := int64(s.history[clerkID])
	delete(s.history, clerkID)
	return n, nil
}

func (s *fakeStore) DeleteUser(_ context.Context, clerkID string) (int64, error) {
	if _, ok := s.users[clerkID]; !ok {
		return 0, nil
	}
	delete(s.users, clerkID)
	return 1, nil
}

func (s *fakeStore) findByCustomer(customerID string) *repository.User {
	for _, u := range s.users {
		if u.StripeCustomerID.Valid && u.StripeCustomerID.String == customerID {
			return u
		}
	}
	return nil
}
