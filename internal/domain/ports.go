package domain

import (
	"context"
	"io"
)

type HostelRepository interface {
	// Read paths
	ListHostels(ctx context.Context) ([]HostelRecord, error) // newest first
	ListRoomTypes(ctx context.Context, hostelIDs []string) ([]RoomTypeRecord, error)
	GetHostel(ctx context.Context, id string) (HostelRecord, error)

	// Write paths. Parent and children are written as one unit.
	CreateHostel(ctx context.Context, h HostelRecord, rts []RoomTypeRecord) (string, error)
	ReplaceHostel(ctx context.Context, h HostelRecord, rts []RoomTypeRecord) error
	DeleteHostel(ctx context.Context, id string) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	CreateProfile(ctx context.Context, p Profile) error
}

type UserRepository interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (string, error)
}

type BlobStore interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error
	PublicURL(bucket, path string) string
	Delete(ctx context.Context, bucket, path string) error
}

type AuthBackend interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (Session, error)
	// OnSessionChange registers fn for sign-in/sign-out events and returns a cancel func.
	OnSessionChange(fn func(SessionEvent)) (cancel func())
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ImageFile is one candidate upload. Open may be called more than once.
type ImageFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}
