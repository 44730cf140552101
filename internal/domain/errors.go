package domain

import "errors"

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrNotFound          = errors.New("not found")
	ErrJobFailed         = errors.New("generation job failed")
	ErrJobTimedOut       = errors.New("generation job timed out")
)

// MissingCredentialError names the environment variable an endpoint needs.
// It matches ErrMissingCredential under errors.Is.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return "Missing " + e.Name
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// MissingCredential builds a MissingCredentialError for name.
func MissingCredential(name string) error {
	return &MissingCredentialError{Name: name}
}
