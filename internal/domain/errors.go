package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("you don't have admin privileges")
	ErrInvalidToken       = errors.New("invalid or expired session")
	ErrInFlight           = errors.New("operation already in progress")
	ErrImageTooLarge      = errors.New("image exceeds size limit")
	ErrUnsupportedImage   = errors.New("unsupported image type")
)

type ErrorKind string

const (
	KindAuth   ErrorKind = "auth"
	KindFetch  ErrorKind = "fetch"
	KindUpload ErrorKind = "upload"
	KindSave   ErrorKind = "save"
	KindDelete ErrorKind = "delete"
)

// Error is an operation-boundary failure. Action is the user-facing name of
// what failed ("save hostel").
type Error struct {
	Kind   ErrorKind
	Action string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "failed to " + e.Action
	}
	return fmt.Sprintf("failed to %s: %v", e.Action, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func AuthError(err error) error { return &Error{Kind: KindAuth, Action: "sign in", Err: err} }
func FetchError(action string, err error) error {
	return &Error{Kind: KindFetch, Action: action, Err: err}
}
func UploadError(err error) error { return &Error{Kind: KindUpload, Action: "upload image", Err: err} }
func SaveError(err error) error   { return &Error{Kind: KindSave, Action: "save hostel", Err: err} }
func DeleteError(err error) error { return &Error{Kind: KindDelete, Action: "delete hostel", Err: err} }

// IsKind reports whether err wraps a *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
