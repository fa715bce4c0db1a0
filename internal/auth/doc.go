// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package auth provides the credential verification and token issuance core
// for KeyGate.
//
// # Domain Types
//
// User records should be created with NewUser, which validates the username
// and email and assigns the immutable ID. Direct struct initialization
// bypasses validation and may create invalid state. Repository
// implementations receive pre-validated values from the services.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, profile fetch and update
//   - PasswordResetService - password reset request and completion
//
// Services are created with New*Service constructors that validate their
// dependencies. Both are stateless and safe for concurrent use; the
// Credential Store is the only shared mutable resource.
package auth
