package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing product or SKU.
	ErrNotFound = errors.New("not found")
	// ErrEmptyVariantSet signals a product without variants; nothing is indexed.
	ErrEmptyVariantSet = errors.New("product has no variants")
	// ErrTransform signals a malformed aggregate, e.g. a selection without its option.
	ErrTransform = errors.New("transform error")
	// ErrIndexUnavailable signals a write-time index failure.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrSearchUnavailable signals a read-time index failure, distinct from an empty result.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// TransformError names the variant a malformed selection belongs to.
type TransformError struct {
	VariantID string
	Reason    string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: variant %s: %s", ErrTransform.Error(), e.VariantID, e.Reason)
}

func (e *TransformError) Unwrap() error { return ErrTransform }

// NewTransformError creates a transform error for one variant.
func NewTransformError(variantID, reason string) error {
	return &TransformError{VariantID: variantID, Reason: reason}
}
