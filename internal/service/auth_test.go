package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arcadehub/arcade/internal/auth"
	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
	"github.com/arcadehub/arcade/internal/service"
)

// fakeUserStore is an in-memory user table keyed by email
type fakeUserStore struct {
	users  map[string]domain.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]domain.User{}, nextID: 1}
}

func (s *fakeUserStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	if _, ok := s.users[u.Email]; ok {
		return domain.User{}, domain.ErrUserExists
	}
	u.ID = s.nextID
	s.nextID++
	s.users[u.Email] = u
	return u, nil
}

func (s *fakeUserStore) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := s.users[email]; ok {
		return &u, nil
	}
	return nil, domain.ErrUserNotFound
}

func rolesConfig() *config.RolesConfig {
	return &config.RolesConfig{
		Permissions: map[string][]string{
			"player": {"play-games", "submit-scores"},
			"admin":  {"play-games", "submit-scores", "manage-content"},
		},
		DefaultRole: "player",
	}
}

func tokenManager() *auth.TokenManager {
	return auth.NewTokenManager(&config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Issuer:    "arcade-api",
	})
}

func newAuthService(store *fakeUserStore) *service.AuthService {
	return service.NewAuthService(store, tokenManager(), rolesConfig(), testLogger())
}

func TestAuthService_Register(t *testing.T) {
	Convey("Given an auth service", t, func() {
		store := newFakeUserStore()
		svc := newAuthService(store)

		Convey("When registering a new account", func() {
			result, err := svc.Register(context.Background(), domain.RegisterRequest{
				Name:     "Alice",
				Email:    "  Alice@Example.COM ",
				Password: "supersecret",
			})
			So(err, ShouldBeNil)

			Convey("Then the account gets the default role and a usable token", func() {
				So(result.User.Role, ShouldEqual, "player")
				So(result.User.Email, ShouldEqual, "alice@example.com")
				So(result.Token, ShouldNotBeEmpty)

				claims, err := tokenManager().Verify(result.Token)
				So(err, ShouldBeNil)
				So(claims.UserID, ShouldEqual, result.User.ID)
				So(claims.UserName, ShouldEqual, "Alice")
				So(claims.Role, ShouldEqual, "player")
			})

			Convey("And the password is stored hashed", func() {
				stored := store.users["alice@example.com"]
				So(stored.PasswordHash, ShouldNotEqual, "supersecret")
				So(auth.CheckPassword(stored.PasswordHash, "supersecret"), ShouldBeTrue)
			})
		})

		Convey("When the email is already taken", func() {
			_, err := svc.Register(context.Background(), domain.RegisterRequest{
				Name: "Alice", Email: "alice@example.com", Password: "supersecret",
			})
			So(err, ShouldBeNil)

			_, err = svc.Register(context.Background(), domain.RegisterRequest{
				Name: "Imposter", Email: "ALICE@example.com", Password: "supersecret",
			})
			So(errors.Is(err, domain.ErrUserExists), ShouldBeTrue)
		})

		Convey("When required fields are missing", func() {
			_, err := svc.Register(context.Background(), domain.RegisterRequest{
				Email: "alice@example.com", Password: "supersecret",
			})
			So(errors.Is(err, domain.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("When the password is too short", func() {
			_, err := svc.Register(context.Background(), domain.RegisterRequest{
				Name: "Alice", Email: "alice@example.com", Password: "short",
			})
			So(errors.Is(err, domain.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestAuthService_Login(t *testing.T) {
	Convey("Given a registered account", t, func() {
		store := newFakeUserStore()
		svc := newAuthService(store)

		_, err := svc.Register(context.Background(), domain.RegisterRequest{
			Name: "Alice", Email: "alice@example.com", Password: "supersecret",
		})
		So(err, ShouldBeNil)

		Convey("When logging in with the right credentials", func() {
			result, err := svc.Login(context.Background(), domain.LoginRequest{
				Email: "Alice@Example.com", Password: "supersecret",
			})
			So(err, ShouldBeNil)
			So(result.Token, ShouldNotBeEmpty)
			So(result.User.Name, ShouldEqual, "Alice")
		})

		Convey("When the password is wrong", func() {
			_, err := svc.Login(context.Background(), domain.LoginRequest{
				Email: "alice@example.com", Password: "wrong-password",
			})
			So(err, ShouldEqual, domain.ErrInvalidCredentials)
		})

		Convey("When the account does not exist", func() {
			_, err := svc.Login(context.Background(), domain.LoginRequest{
				Email: "nobody@example.com", Password: "supersecret",
			})

			Convey("Then the error does not reveal which part failed", func() {
				So(err, ShouldEqual, domain.ErrInvalidCredentials)
			})
		})
	})
}
