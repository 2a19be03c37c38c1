package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/mocks"
	"github.com/atinyakov/tinylink/internal/storage"
)

const testSecret = "test-secret"

func TestBuildJWTString(t *testing.T) {
	auth := service.NewAuth(nil, testSecret, time.Hour)

	tokenStr, err := auth.BuildJWTString("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	token, err := jwt.ParseWithClaims(tokenStr, &service.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(*service.Claims)
	require.True(t, ok)
	require.Equal(t, "user-1", claims.UserID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseRawJWT(t *testing.T) {
	auth := service.NewAuth(nil, testSecret, time.Hour)

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.BuildJWTString("user-1")
		require.NoError(t, err)

		claims, err := auth.ParseRawJWT(token)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.UserID)
	})

	t.Run("invalid token", func(t *testing.T) {
		claims, err := auth.ParseRawJWT("invalid.token.here")
		require.Error(t, err)
		require.Nil(t, claims)
	})

	t.Run("other secret", func(t *testing.T) {
		token, err := service.NewAuth(nil, "another", time.Hour).BuildJWTString("user-1")
		require.NoError(t, err)

		_, err = auth.ParseRawJWT(token)
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
			UserID: "user-1",
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = auth.ParseRawJWT(signed)
		require.Error(t, err)
	})

	t.Run("missing user id", func(t *testing.T) {
		token, err := auth.BuildJWTString("")
		require.NoError(t, err)

		_, err = auth.ParseRawJWT(token)
		require.Error(t, err)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := service.NewAuth(newMemoryStore(t), testSecret, 24*time.Hour)

	user, err := auth.Register(ctx, " Ann@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotEmpty(t, user.ID)

	_, err = auth.Register(ctx, "ann@example.com", "secret2")
	assert.Equal(t, errx.EmailTaken, errx.KindOf(err))

	res, err := auth.Login(ctx, "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "24h0m0s", res.ExpiresIn)
	assert.Equal(t, user.ID, res.User.ID)

	claims, err := auth.ParseRawJWT(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	me, err := auth.CurrentUser(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", me.Email)

	_, err = auth.Login(ctx, "ann@example.com", "wrong-password")
	assert.Equal(t, errx.Unauthorized, errx.KindOf(err))

	_, err = auth.Login(ctx, "bob@example.com", "secret1")
	assert.Equal(t, errx.Unauthorized, errx.KindOf(err))

	_, err = auth.CurrentUser(ctx, "ghost")
	assert.Equal(t, errx.Unauthorized, errx.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStorage(ctrl)
	auth := service.NewAuth(users, testSecret, time.Hour)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "secret1"},
		{name: "no at sign", email: "ann.example.com", password: "secret1"},
		{name: "short password", email: "ann@example.com", password: "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(context.Background(), tt.email, tt.password)
			assert.Equal(t, errx.Invalid, errx.KindOf(err))
		})
	}

	_, err := auth.Login(context.Background(), "", "")
	assert.Equal(t, errx.Invalid, errx.KindOf(err))
}

func TestRegisterStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStorage(ctrl)
	users.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := service.NewAuth(users, testSecret, time.Hour).Register(context.Background(), "ann@example.com", "secret1")
	assert.Equal(t, errx.Transient, errx.KindOf(err))
}

func TestLoginStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStorage(ctrl)
	users.EXPECT().FindUserByEmail(gomock.Any(), "ann@example.com").Return(nil, errors.New("db down"))

	_, err := service.NewAuth(users, testSecret, time.Hour).Login(context.Background(), "ann@example.com", "secret1")
	assert.Equal(t, errx.Transient, errx.KindOf(err))
}

var _ service.UserStorage = (*storage.MemoryStorage)(nil)
