// Package service contains the business logic layer.
//
// This file implements user provisioning driven by identity-provider
// webhook events, plus profile and settings management.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserService manages provisioned users and their settings.
type UserService interface {
	// ProvisionUser handles a user.created event. It is idempotent: an
	// existing row under the same Clerk id is returned unchanged, and a
	// row sharing the email (identity-provider account recreation) is
	// re-keyed to the new Clerk id, keeping its usage and billing state.
	ProvisionUser(ctx context.Context, params ProvisionUserParams) (*domain.User, error)

	// UpdateProfile applies a partial profile patch from a user.updated
	// event. Absent fields never overwrite stored values.
	UpdateProfile(ctx context.Context, clerkID string, patch domain.ProfilePatch) (*domain.User, error)

	// DeleteUser removes the user and its summary history. Deleting an
	// absent user is success.
	DeleteUser(ctx context.Context, clerkID string) error

	// GetUser fetches a user by Clerk id.
	GetUser(ctx context.Context, clerkID string) (*domain.User, error)

	// UpdateSettings applies a partial settings patch.
	UpdateSettings(ctx context.Context, clerkID string, patch domain.SettingsPatch) (*domain.User, error)
}

// ProvisionUserParams carries the identity fields of a user.created event.
type ProvisionUserParams struct {
	ClerkID string
	Email   string
	Patch   domain.ProfilePatch
}

// UserStore is the slice of the repository user provisioning touches.
// *repository.Queries satisfies it.
type UserStore interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error)
	RelinkUserClerkID(ctx context.Context, arg repository.RelinkUserClerkIDParams) (repository.User, error)
	UpdateUserProfile(ctx context.Context, arg repository.UpdateUserProfileParams) (repository.User, error)
	UpdateUserSettings(ctx context.Context, arg repository.UpdateUserSettingsParams) (repository.User, error)
	DeleteSummaryHistoryByUser(ctx context.Context, clerkID string) (int64, error)
	DeleteUser(ctx context.Context, clerkID string) (int64, error)
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries UserStore
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(queries UserStore, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

// ProvisionUser creates or re-keys a user row for a new identity.
func (s *userService) ProvisionUser(ctx context.Context, params ProvisionUserParams) (*domain.User, error) {
	const op = "user.provision"

	if params.ClerkID == "" {
		return nil, domain.Invalid(op, "identity id is required")
	}
	if params.Email == "" {
		return nil, domain.Invalid(op, "a primary email address is required")
	}

	// Replayed delivery for an already-provisioned identity: no-op.
	existing, err := s.queries.GetUserByClerkID(ctx, params.ClerkID)
	if err == nil {
		user := toDomainUser(existing)
		return &user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to look up user")
	}

	// Same email under a new identity id: the person deleted and recreated
	// their account upstream. Re-key the row instead of inserting, so their
	// usage counters and billing links survive.
	if _, err := s.queries.GetUserByEmail(ctx, params.Email); err == nil {
		relinked, err := s.queries.RelinkUserClerkID(ctx, repository.RelinkUserClerkIDParams{
			Email:           params.Email,
			ClerkID:         params.ClerkID,
			FirstName:       nullString(params.Patch.FirstName),
			LastName:        nullString(params.Patch.LastName),
			ProfileImageUrl: nullString(params.Patch.ProfileImageURL),
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to re-key user")
		}
		s.logger.Info("Re-keyed existing user to new identity",
			"clerk_id", params.ClerkID,
			"email", params.Email,
		)
		user := toDomainUser(relinked)
		return &user, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to look up user by email")
	}

	created, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		ClerkID:         params.ClerkID,
		Email:           params.Email,
		FirstName:       nullString(params.Patch.FirstName),
		LastName:        nullString(params.Patch.LastName),
		ProfileImageUrl: nullString(params.Patch.ProfileImageURL),
		Plan:            string(domain.PlanFree),
		SummaryLimit:    domain.FreeSummaryLimit,
		UsageResetAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create user")
	}

	s.logger.Info("Provisioned new user", "clerk_id", created.ClerkID, "email", created.Email)
	user := toDomainUser(created)
	return &user, nil
}

// UpdateProfile applies a user.updated patch to the stored profile.
func (s *userService) UpdateProfile(ctx context.Context, clerkID string, patch domain.ProfilePatch) (*domain.User, error) {
	const op = "user.update_profile"

	if patch.Empty() {
		return s.GetUser(ctx, clerkID)
	}

	updated, err := s.queries.UpdateUserProfile(ctx, repository.UpdateUserProfileParams{
		ClerkID:         clerkID,
		Email:           nullString(patch.Email),
		FirstName:       nullString(patch.FirstName),
		LastName:        nullString(patch.LastName),
		ProfileImageUrl: nullString(patch.ProfileImageURL),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "user", clerkID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update profile")
	}

	user := toDomainUser(updated)
	return &user, nil
}

// DeleteUser removes a user and its summary history.
func (s *userService) DeleteUser(ctx context.Context, clerkID string) error {
	const op = "user.delete"

	removed, err := s.queries.DeleteSummaryHistoryByUser(ctx, clerkID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete summary history")
	}

	deleted, err := s.queries.DeleteUser(ctx, clerkID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete user")
	}

	if deleted == 0 {
		// Replayed delivery or an identity we never provisioned.
		s.logger.Info("Delete for absent user acknowledged", "clerk_id", clerkID)
		return nil
	}

	s.logger.Info("Deleted user", "clerk_id", clerkID, "history_items_removed", removed)
	return nil
}

// GetUser fetches a user by Clerk id.
func (s *userService) GetUser(ctx context.Context, clerkID string) (*domain.User, error) {
	const op = "user.get"

	row, err := s.queries.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "user", clerkID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get user")
	}

	user := toDomainUser(row)
	return &user, nil
}

// UpdateSettings applies a partial settings patch.
func (s *userService) UpdateSettings(ctx context.Context, clerkID string, patch domain.SettingsPatch) (*domain.User, error) {
	const op = "user.update_settings"

	if patch.DefaultSummaryLength != nil {
		if !domain.SummaryLength(*patch.DefaultSummaryLength).Valid() {
			return nil, domain.Invalid(op, "invalid default summary length")
		}
	}

	updated, err := s.queries.UpdateUserSettings(ctx, repository.UpdateUserSettingsParams{
		ClerkID:              clerkID,
		Theme:                nullString(patch.Theme),
		DefaultSummaryLength: nullString(patch.DefaultSummaryLength),
		AutoSaveHistory:      nullBool(patch.AutoSaveHistory),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "user", clerkID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update settings")
	}

	user := toDomainUser(updated)
	return &user, nil
}

// =============================================================================
// Conversion helpers
// =============================================================================

// toDomainUser converts a repository row to the domain representation.
func toDomainUser(row repository.User) domain.User {
	return domain.User{
		ClerkID:                row.ClerkID,
		Email:                  row.Email,
		FirstName:              domain.NullStringValue(row.FirstName),
		LastName:               domain.NullStringValue(row.LastName),
		ProfileImageURL:        domain.NullStringValue(row.ProfileImageUrl),
		Plan:                   domain.Plan(row.Plan),
		SummariesUsed:          row.SummariesUsed,
		SummaryLimit:           row.SummaryLimit,
		UsageResetAt:           row.UsageResetAt,
		TotalSummariesMade:     row.TotalSummariesMade,
		StripeCustomerID:       domain.NullStringValue(row.StripeCustomerID),
		StripeSubscriptionID:   domain.NullStringValue(row.StripeSubscriptionID),
		StripePriceID:          domain.NullStringValue(row.StripePriceID),
		StripeCurrentPeriodEnd: domain.NullTimeValue(row.StripeCurrentPeriodEnd),
		Theme:                  row.Theme,
		DefaultSummaryLength:   row.DefaultSummaryLength,
		AutoSaveHistory:        row.AutoSaveHistory,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
