// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keygate/keygate/internal/auth"
)

func createTestUser(username, email string) *auth.User {
	user, err := auth.NewUser(username, email, "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")
	Expect(err).NotTo(HaveOccurred())
	return user
}

var _ = Describe("UserRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	Describe("Create", func() {
		It("persists all user fields", func() {
			user := createTestUser("alice", "alice@example.com")

			Expect(env.Users.Create(ctx, user)).To(Succeed())

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("alice"))
			Expect(got.Email).To(Equal("alice@example.com"))
			Expect(got.PasswordHash).To(Equal(user.PasswordHash))
			Expect(got.FailedAttempts).To(BeZero())
			Expect(got.LockedUntil).To(BeNil())
		})

		It("maps a case-insensitive email collision to ErrDuplicateEmail", func() {
			Expect(env.Users.Create(ctx, createTestUser("alice", "alice@example.com"))).To(Succeed())

			dup := createTestUser("bob", "bob@example.com")
			dup.Email = "Alice@Example.com"
			Expect(env.Users.Create(ctx, dup)).To(MatchError(auth.ErrDuplicateEmail))
		})

		It("maps a case-insensitive username collision to ErrDuplicateUsername", func() {
			Expect(env.Users.Create(ctx, createTestUser("alice", "alice@example.com"))).To(Succeed())

			dup := createTestUser("Alice", "other@example.com")
			Expect(env.Users.Create(ctx, dup)).To(MatchError(auth.ErrDuplicateUsername))
		})
	})

	Describe("Get", func() {
		It("finds users by email ignoring case", func() {
			user := createTestUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			got, err := env.Users.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
		})

		It("finds users by username ignoring case", func() {
			user := createTestUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			got, err := env.Users.GetByUsername(ctx, "ALICE")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
		})

		It("returns ErrNotFound for a missing user", func() {
			_, err := env.Users.GetByID(ctx, ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))

			_, err = env.Users.GetByEmail(ctx, "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("Update", func() {
		It("persists lockout state round trip", func() {
			user := createTestUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			until := time.Now().Add(15 * time.Minute).UTC()
			user.FailedAttempts = 7
			user.LockedUntil = &until
			Expect(env.Users.Update(ctx, user)).To(Succeed())

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FailedAttempts).To(Equal(7))
			Expect(got.LockedUntil).NotTo(BeNil())
			Expect(got.LockedUntil.Unix()).To(Equal(until.Unix()))
		})

		It("returns ErrNotFound for a deleted user", func() {
			user := createTestUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())
			Expect(env.Users.Delete(ctx, user.ID)).To(Succeed())

			Expect(env.Users.Update(ctx, user)).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("UpdatePassword", func() {
		It("swaps only the password hash", func() {
			user := createTestUser("alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			newHash := "$argon2id$v=19$m=65536,t=3,p=2$bmV3c2FsdA$bmV3aGFzaA"
			Expect(env.Users.UpdatePassword(ctx, user.ID, newHash)).To(Succeed())

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal(newHash))
			Expect(got.Username).To(Equal("alice"))
		})
	})
})

var _ = Describe("PasswordResetRepository", func() {
	var (
		ctx  context.Context
		user *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
		user = createTestUser("alice", "alice@example.com")
		Expect(env.Users.Create(ctx, user)).To(Succeed())
	})

	It("stores and retrieves a reset by token hash", func() {
		_, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())

		reset, err := auth.NewPasswordReset(user.ID, hash, time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.Create(ctx, reset)).To(Succeed())

		got, err := env.Resets.GetByTokenHash(ctx, hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(user.ID))
	})

	It("deletes all resets for a user", func() {
		for range 3 {
			_, hash, err := auth.GenerateResetToken()
			Expect(err).NotTo(HaveOccurred())
			reset, err := auth.NewPasswordReset(user.ID, hash, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Resets.Create(ctx, reset)).To(Succeed())
		}

		Expect(env.Resets.DeleteByUser(ctx, user.ID)).To(Succeed())

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM password_resets").Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})

	It("cascades when the user is deleted", func() {
		_, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		reset, err := auth.NewPasswordReset(user.ID, hash, time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.Create(ctx, reset)).To(Succeed())

		Expect(env.Users.Delete(ctx, user.ID)).To(Succeed())

		_, err = env.Resets.GetByTokenHash(ctx, hash)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reaps only expired resets", func() {
		_, liveHash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		live, err := auth.NewPasswordReset(user.ID, liveHash, time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.Create(ctx, live)).To(Succeed())

		_, deadHash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		dead, err := auth.NewPasswordReset(user.ID, deadHash, time.Now().Add(time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.Create(ctx, dead)).To(Succeed())

		time.Sleep(10 * time.Millisecond)

		deleted, err := env.Resets.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(Equal(int64(1)))

		_, err = env.Resets.GetByTokenHash(ctx, liveHash)
		Expect(err).NotTo(HaveOccurred())
	})
})
