// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Service provides registration, login, and profile operations.
// It is stateless and safe for concurrent use.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenIssuer
}

// NewService creates a new Service.
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("token issuer is required")
	}
	return &Service{users: users, hasher: hasher, tokens: tokens}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user and issues a token for it.
// The duplicate checks before Create are a fast path; the store's unique
// constraints are the authority of last resort, and a constraint violation
// raised by Create reports as the same duplicate error.
func (s *Service) Register(ctx context.Context, username, email, password string) (PublicUser, string, error) {
	if err := ValidateUsername(username); err != nil {
		return PublicUser{}, "", err
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return PublicUser{}, "", err
	}
	if password == "" {
		return PublicUser{}, "", ErrEmptyPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return PublicUser{}, "", oops.Code("AUTH_DUPLICATE_EMAIL").Errorf("email already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return PublicUser{}, "", oops.Code("AUTH_DUPLICATE_USERNAME").Errorf("username already taken")
	} else if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, email, hash)
	if err != nil {
		return PublicUser{}, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Two racing registrations can both pass the fast-path checks;
		// the unique constraint decides, and its verdict is a duplicate,
		// not an internal error.
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return PublicUser{}, "", oops.Code("AUTH_DUPLICATE_EMAIL").Errorf("email already registered")
		case errors.Is(err, ErrDuplicateUsername):
			return PublicUser{}, "", oops.Code("AUTH_DUPLICATE_USERNAME").Errorf("username already taken")
		}
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return user.Public(), token, nil
}

// Login authenticates a user by email and password and issues a token.
// Unknown email and wrong password produce the same error with the same
// message, to avoid account enumeration. Uses constant-time operations
// to keep response time independent of account existence.
func (s *Service) Login(ctx context.Context, email, password string) (PublicUser, string, error) {
	if email == "" || password == "" {
		return PublicUser{}, "", oops.Code("AUTH_VALIDATION").Errorf("email and password are required")
	}
	email = NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return PublicUser{}, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// Hash computation failure is an internal error, never reported
		// as "password incorrect".
		return PublicUser{}, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// Check lockout AFTER password verification to maintain constant time.
	// A locked account answers the same for right and wrong passwords, so
	// the lockout response cannot confirm credential validity.
	if userExists && user.IsLocked() {
		return PublicUser{}, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	// If the user doesn't exist OR the password is wrong, return the same error
	if !userExists || !valid {
		if userExists {
			// Record failure only for existing users
			user.RecordFailure()
			_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort
		}
		return PublicUser{}, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Success - reset failure counter.
	// Ignore errors - login should succeed even if the update fails.
	user.RecordSuccess()
	_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort, login succeeds regardless

	token, err := s.tokens.Issue(user)
	if err != nil {
		return PublicUser{}, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return user.Public(), token, nil
}

// Profile verifies a token and returns the projection of the user it was
// issued for. The record can vanish between issuance and fetch; that is
// reported as not-found, not as a token failure.
func (s *Service) Profile(ctx context.Context, token string) (PublicUser, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return PublicUser{}, err
	}

	id, err := claims.UserID()
	if err != nil {
		return PublicUser{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, oops.Code("AUTH_USER_NOT_FOUND").
				With("id", id.String()).
				Errorf("user no longer exists")
		}
		return PublicUser{}, oops.Code("AUTH_PROFILE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	return user.Public(), nil
}

// ProfileUpdate carries the optional fields of an UpdateProfile call.
// Nil means "leave unchanged".
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UpdateProfile changes the username and/or email of the token's user.
// Each supplied field that differs from the stored value is re-checked for
// uniqueness against other records before committing. The store's unique
// constraints remain the backstop for races, as in Register.
func (s *Service) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (PublicUser, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return PublicUser{}, err
	}

	id, err := claims.UserID()
	if err != nil {
		return PublicUser{}, err
	}

	if update.Username == nil && update.Email == nil {
		return PublicUser{}, oops.Code("AUTH_VALIDATION").Errorf("at least one of username or email is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, oops.Code("AUTH_USER_NOT_FOUND").
				With("id", id.String()).
				Errorf("user no longer exists")
		}
		return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	changed := false

	if update.Username != nil && *update.Username != user.Username {
		if err := ValidateUsername(*update.Username); err != nil {
			return PublicUser{}, err
		}
		existing, err := s.users.GetByUsername(ctx, *update.Username)
		if err == nil && existing.ID != user.ID {
			return PublicUser{}, oops.Code("AUTH_DUPLICATE_USERNAME").Errorf("username already taken")
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
				With("operation", "get user by username").
				Wrap(err)
		}
		user.Username = *update.Username
		changed = true
	}

	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if email != user.Email {
			if err := ValidateEmail(email); err != nil {
				return PublicUser{}, err
			}
			existing, err := s.users.GetByEmail(ctx, email)
			if err == nil && existing.ID != user.ID {
				return PublicUser{}, oops.Code("AUTH_DUPLICATE_EMAIL").Errorf("email already registered")
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
					With("operation", "get user by email").
					Wrap(err)
			}
			user.Email = email
			changed = true
		}
	}

	if !changed {
		return user.Public(), nil
	}

	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return PublicUser{}, oops.Code("AUTH_DUPLICATE_EMAIL").Errorf("email already registered")
		case errors.Is(err, ErrDuplicateUsername):
			return PublicUser{}, oops.Code("AUTH_DUPLICATE_USERNAME").Errorf("username already taken")
		case errors.Is(err, ErrNotFound):
			return PublicUser{}, oops.Code("AUTH_USER_NOT_FOUND").
				With("id", id.String()).
				Errorf("user no longer exists")
		}
		return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "update user").
			Wrap(err)
	}

	return user.Public(), nil
}
