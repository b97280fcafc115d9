package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRunNotFound      = errors.New("pipeline run not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	// ErrTransport covers upload and network failures talking to storage.
	ErrTransport = errors.New("transport failure")
	// ErrCollaborator covers extraction, detection and rewrite failures or malformed payloads.
	ErrCollaborator      = errors.New("collaborator failure")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrInvalidTransition = errors.New("invalid transition")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
