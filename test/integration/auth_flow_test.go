// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

//go:build integration

package integration

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keygate/keygate/internal/auth"
)

var _ = Describe("Account lifecycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	Describe("Register", func() {
		It("creates an account and returns a verifiable token", func() {
			user, token, err := env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice"))
			Expect(user.Email).To(Equal("alice@example.com"))

			claims, err := env.Issuer.Verify(token)
			Expect(err).NotTo(HaveOccurred())
			id, err := claims.UserID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id.String()).To(Equal(user.ID))
		})

		It("rejects a duplicate email regardless of case", func() {
			_, _, err := env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.AuthSvc.Register(ctx, "bob", "ALICE@Example.COM", "OtherPass1")
			Expect(err).To(MatchError(ContainSubstring("email already registered")))
		})

		It("rejects a duplicate username regardless of case", func() {
			_, _, err := env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.AuthSvc.Register(ctx, "ALICE", "other@example.com", "OtherPass1")
			Expect(err).To(MatchError(ContainSubstring("username already taken")))
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			_, _, err := env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("authenticates the registered password", func() {
			user, token, err := env.AuthSvc.Login(ctx, "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice"))
			Expect(token).NotTo(BeEmpty())
		})

		It("normalizes the email before lookup", func() {
			_, _, err := env.AuthSvc.Login(ctx, "Alice@EXAMPLE.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a wrong password", func() {
			_, _, err := env.AuthSvc.Login(ctx, "alice@example.com", "WrongPass")
			Expect(err).To(MatchError(ContainSubstring("invalid email or password")))
		})

		It("locks the account after repeated failures", func() {
			for range auth.LockoutThreshold {
				_, _, err := env.AuthSvc.Login(ctx, "alice@example.com", "WrongPass")
				Expect(err).To(HaveOccurred())
			}

			// Right and wrong passwords answer identically while locked
			_, _, err := env.AuthSvc.Login(ctx, "alice@example.com", "S3cretPass")
			Expect(err).To(MatchError(ContainSubstring("locked")))
			_, _, err = env.AuthSvc.Login(ctx, "alice@example.com", "WrongPass")
			Expect(err).To(MatchError(ContainSubstring("locked")))
		})

		It("resets the failure count on success", func() {
			_, _, err := env.AuthSvc.Login(ctx, "alice@example.com", "WrongPass")
			Expect(err).To(HaveOccurred())

			_, _, err = env.AuthSvc.Login(ctx, "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())

			stored, err := env.Users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.FailedAttempts).To(BeZero())
			Expect(stored.LockedUntil).To(BeNil())
		})
	})

	Describe("Profile", func() {
		var token string

		BeforeEach(func() {
			var err error
			_, token, err = env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the user for a valid token", func() {
			user, err := env.AuthSvc.Profile(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice"))
		})

		It("updates username and email", func() {
			username := "alice_two"
			email := "alice2@example.com"
			user, err := env.AuthSvc.UpdateProfile(ctx, token, auth.ProfileUpdate{
				Username: &username,
				Email:    &email,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice_two"))
			Expect(user.Email).To(Equal("alice2@example.com"))

			// Login works against the new email
			_, _, err = env.AuthSvc.Login(ctx, "alice2@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses an update onto another user's username", func() {
			_, _, err := env.AuthSvc.Register(ctx, "bob", "bob@example.com", "OtherPass1")
			Expect(err).NotTo(HaveOccurred())

			username := "bob"
			_, err = env.AuthSvc.UpdateProfile(ctx, token, auth.ProfileUpdate{Username: &username})
			Expect(err).To(MatchError(ContainSubstring("username already taken")))
		})
	})

	Describe("Password reset", func() {
		BeforeEach(func() {
			_, _, err := env.AuthSvc.Register(ctx, "alice", "alice@example.com", "S3cretPass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("resets the password end to end", func() {
			token, err := env.ResetSvc.RequestReset(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())

			Expect(env.ResetSvc.ResetPassword(ctx, token, "NewPass9000")).To(Succeed())

			// Old password is dead, new one works
			_, _, err = env.AuthSvc.Login(ctx, "alice@example.com", "S3cretPass")
			Expect(err).To(HaveOccurred())
			_, _, err = env.AuthSvc.Login(ctx, "alice@example.com", "NewPass9000")
			Expect(err).NotTo(HaveOccurred())
		})

		It("consumes the token on use", func() {
			token, err := env.ResetSvc.RequestReset(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.ResetSvc.ResetPassword(ctx, token, "NewPass9000")).To(Succeed())

			err = env.ResetSvc.ResetPassword(ctx, token, "AnotherPass1")
			Expect(err).To(MatchError(ContainSubstring("invalid")))
		})

		It("returns no token for an unknown email", func() {
			token, err := env.ResetSvc.RequestReset(ctx, "nobody@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(BeEmpty())
		})
	})
})
