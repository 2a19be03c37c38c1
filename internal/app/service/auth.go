// Package service provides the link core (code allocation and click
// recording), the link operations built on it and account authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/models"
	"github.com/atinyakov/tinylink/internal/storage"
)

// DefaultTokenTTL is used when no token lifetime is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// Claims represents the claims that are included in the JWT token.
type Claims struct {
	jwt.RegisteredClaims
	// UserID identifies the account the token was issued to.
	UserID string `json:"user_id"`
}

// Auth registers accounts, checks credentials and issues HS256 tokens.
type Auth struct {
	users  UserStorage
	secret []byte
	ttl    time.Duration
	cost   int
}

// NewAuth creates an Auth signing tokens with secret that live for ttl.
func NewAuth(users UserStorage, secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Auth{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
	}
}

func (a *Auth) Register(ctx context.Context, email, password string) (*models.UserResponse, error) {
	const op = "auth.Register"

	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errx.E(op, errx.Invalid, errors.New("email and password required"))
	}
	if len(password) < MinPasswordLength {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, errx.E(op, errx.Invalid, err)
	}

	u, err := a.users.CreateUser(ctx, storage.User{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, errx.E(op, errx.EmailTaken, errors.New("email already registered"))
		}
		return nil, errx.E(op, errx.Transient, err)
	}

	return toUserResponse(u), nil
}

func (a *Auth) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	const op = "auth.Login"

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errx.E(op, errx.Invalid, errors.New("email and password required"))
	}

	u, err := a.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errx.E(op, errx.Unauthorized, errors.New("invalid credentials"))
		}
		return nil, errx.E(op, errx.Transient, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errx.E(op, errx.Unauthorized, errors.New("invalid credentials"))
	}

	token, err := a.BuildJWTString(u.ID)
	if err != nil {
		return nil, errx.E(op, errx.Unknown, err)
	}

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: a.ttl.String(),
		User:      *toUserResponse(u),
	}, nil
}

// CurrentUser loads the account a verified token was issued to.
func (a *Auth) CurrentUser(ctx context.Context, userID string) (*models.UserResponse, error) {
	u, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errx.E("auth.CurrentUser", errx.Unauthorized, errors.New("invalid token"))
		}
		return nil, errx.E("auth.CurrentUser", errx.Transient, err)
	}
	return toUserResponse(u), nil
}

// BuildJWTString signs a token carrying userID.
func (a *Auth) BuildJWTString(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID: userID,
	})

	return token.SignedString(a.secret)
}

func (a *Auth) ParseRawJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token or claims")
	}

	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(u *storage.User) *models.UserResponse {
	return &models.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
