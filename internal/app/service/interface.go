package service

import (
	"context"
	"time"

	"github.com/atinyakov/tinylink/internal/models"
	"github.com/atinyakov/tinylink/internal/storage"
)

// LinkStorage is the persistence contract of the link core. Implementations
// must reject a second live row with the same code and increment clicks in a
// single atomic statement.
type LinkStorage interface {
	InsertLink(context.Context, storage.Link) (*storage.Link, error)
	FindLiveByCode(context.Context, string) (*storage.Link, error)
	FindLatestByCode(context.Context, string) (*storage.Link, error)
	CodeExists(context.Context, string) (bool, error)
	IncrementClicks(ctx context.Context, code string, at time.Time) error
	SoftDelete(ctx context.Context, code, ownerID string) error
	SoftDeleteBatch(context.Context, []storage.DeleteTask) error
	ListByOwner(context.Context, storage.ListFilter) ([]storage.Link, int, error)
	PingContext(context.Context) error
}

// UserStorage persists accounts.
type UserStorage interface {
	CreateUser(context.Context, storage.User) (*storage.User, error)
	FindUserByEmail(context.Context, string) (*storage.User, error)
	FindUserByID(context.Context, string) (*storage.User, error)
}

// LinkServiceIface is what the transports need from the link service.
type LinkServiceIface interface {
	Create(ctx context.Context, ownerID string, req models.CreateLinkRequest) (*models.LinkResponse, error)
	Resolve(ctx context.Context, code string) (string, error)
	List(ctx context.Context, ownerID string, q models.ListQuery) (*models.ListResponse, error)
	Stats(ctx context.Context, ownerID, code string) (*models.LinkResponse, error)
	Delete(ctx context.Context, ownerID, code string) error
	DeleteBatch(ctx context.Context, ownerID string, codes []string) error
	PingContext(ctx context.Context) error
}

// TokenParser validates bearer tokens.
type TokenParser interface {
	ParseRawJWT(tokenString string) (*Claims, error)
}

// AuthIface defines the account operations used by the handlers and middleware.
type AuthIface interface {
	TokenParser
	Register(ctx context.Context, email, password string) (*models.UserResponse, error)
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	CurrentUser(ctx context.Context, userID string) (*models.UserResponse, error)
	BuildJWTString(userID string) (string, error)
}
