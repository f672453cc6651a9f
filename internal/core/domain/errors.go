package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrTemporary         = errors.New("temporary failure")
	ErrStoreUnavailable  = errors.New("document store unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyCorpus       = errors.New("empty corpus")
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

func fmtAny(v any) string {
	return fmt.Sprintf("%v", v)
}
