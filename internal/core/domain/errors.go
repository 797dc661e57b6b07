package domain

import (
	"errors"
	"fmt"
)

var (
	ErrChunking           = errors.New("chunking configuration invalid")
	ErrLoad               = errors.New("document load failed")
	ErrVectorDBConnection = errors.New("vector db connection failed")
	ErrVectorDBOperation  = errors.New("vector db operation rejected")
	ErrOrchestrator       = errors.New("orchestrator capability failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrTemporary          = errors.New("temporary failure")
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
