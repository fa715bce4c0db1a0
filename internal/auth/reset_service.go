// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	users  UserRepository
	resets PasswordResetRepository
	hasher PasswordHasher
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(users UserRepository, resets PasswordResetRepository, hasher PasswordHasher) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_INIT_FAILED").Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Code("RESET_INIT_FAILED").Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INIT_FAILED").Errorf("password hasher is required")
	}
	return &PasswordResetService{users: users, resets: resets, hasher: hasher}, nil
}

// RequestReset requests a password reset for a user by email.
// If the user exists, generates a reset token and stores the hash.
// Returns the plaintext token for out-of-band delivery (sending it is NOT
// this service's job). If the user doesn't exist, returns success with an
// empty token to prevent email enumeration.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", oops.Code("AUTH_VALIDATION").Errorf("email cannot be empty")
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Return success with empty token to prevent email enumeration
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, hash, time.Now().Add(ResetTokenExpiry))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new password reset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset").
			Wrap(err)
	}

	return token, nil
}

// ValidateToken validates a reset token and returns the associated user ID.
// Returns an error if the token is invalid, expired, or not found.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token cannot be empty")
	}

	hash := hashResetToken(token)

	reset, err := s.resets.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return ulid.ULID{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	if reset.IsExpired() {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}

	return reset.UserID, nil
}

// ResetPassword resets a user's password using a valid reset token.
// Validates the token, hashes the new password, updates the user's
// password, and deletes all outstanding reset tokens for the user.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	userID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Cleanup - the password was already updated, so a failure here only
	// leaves tokens that will expire on their own.
	//nolint:errcheck // Cleanup failure is acceptable; password was already updated
	s.resets.DeleteByUser(ctx, userID)

	return nil
}
