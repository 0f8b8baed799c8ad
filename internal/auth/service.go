package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"predictmarket/internal/model"
	"predictmarket/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store          store.Store
	issuer         string
	secret         []byte
	ttl            time.Duration
	initialBalance decimal.Decimal
}

func NewService(st store.Store, issuer string, secret []byte, ttl time.Duration, initialBalance decimal.Decimal) *Service {
	return &Service{store: st, issuer: issuer, secret: secret, ttl: ttl, initialBalance: initialBalance}
}

// Register creates a user with the initial balance grant and no positions.
func (s *Service) Register(ctx context.Context, username, password string) (model.UserSummary, error) {
	if username == "" || password == "" {
		return model.UserSummary{}, errors.New("username and password required")
	}
	_, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return model.UserSummary{}, errors.New("username taken")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.UserSummary{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.UserSummary{}, err
	}
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Balance:      s.initialBalance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return model.UserSummary{}, err
	}
	log.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")
	return user.Summary(), nil
}

// Login verifies credentials and returns a signed access token with the user
// summary.
func (s *Service) Login(ctx context.Context, username, password string) (string, model.UserSummary, error) {
	if username == "" || password == "" {
		return "", model.UserSummary{}, errors.New("username and password required")
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", model.UserSummary{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", model.UserSummary{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", model.UserSummary{}, ErrInvalidCredentials
	}
	token, err := s.signToken(user.ID)
	if err != nil {
		return "", model.UserSummary{}, err
	}
	return token, user.Summary(), nil
}

func (s *Service) signToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ParseToken validates an access token and returns the subject user id.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}

// GetUser loads a user by id for the /me endpoint.
func (s *Service) GetUser(ctx context.Context, userID string) (model.UserSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.UserSummary{}, err
	}
	return user.Summary(), nil
}
