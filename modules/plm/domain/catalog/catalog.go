// Package catalog exposes read-only reference checks against the product
// catalog. Change orders point at products and BOMs they do not own; the
// workflow service only needs to know the references resolve.
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ReferenceChecker verifies that external references exist.
type ReferenceChecker interface {
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	BOMExists(ctx context.Context, id uuid.UUID) (bool, error)
}
