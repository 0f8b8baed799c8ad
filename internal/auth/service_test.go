package auth

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/shopspring/decimal"

	"predictmarket/internal/store"
)

func newTestService() *Service {
	return NewService(store.NewMemoryStore(), "predictmarket-test", []byte("test-secret"), time.Hour, decimal.NewFromInt(1000))
}

func TestRegisterAndLogin(t *testing.T) {
	is := is.New(t)
	svc := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "hunter2")
	is.NoErr(err)
	is.Equal(user.Username, "alice")
	is.True(user.Balance.Equal(decimal.NewFromInt(1000)))
	is.Equal(user.IsAdmin, false)

	token, logged, err := svc.Login(ctx, "alice", "hunter2")
	is.NoErr(err)
	is.Equal(logged.ID, user.ID)

	subject, err := svc.ParseToken(token)
	is.NoErr(err)
	is.Equal(subject, user.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	is := is.New(t)
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "hunter2")
	is.NoErr(err)
	_, err = svc.Register(ctx, "alice", "other")
	is.True(err != nil)
}

func TestRegisterMissingFields(t *testing.T) {
	is := is.New(t)
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "hunter2")
	is.True(err != nil)
	_, err = svc.Register(ctx, "alice", "")
	is.True(err != nil)
}

func TestLoginWrongPassword(t *testing.T) {
	is := is.New(t)
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "hunter2")
	is.NoErr(err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	is.Equal(err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "hunter2")
	is.Equal(err, ErrInvalidCredentials)
}

func TestParseTokenRejectsForeignToken(t *testing.T) {
	is := is.New(t)
	svc := newTestService()
	other := NewService(store.NewMemoryStore(), "predictmarket-test", []byte("other-secret"), time.Hour, decimal.NewFromInt(1000))
	ctx := context.Background()

	_, err := other.Register(ctx, "alice", "hunter2")
	is.NoErr(err)
	token, _, err := other.Login(ctx, "alice", "hunter2")
	is.NoErr(err)

	_, err = svc.ParseToken(token)
	is.True(err != nil)
}
