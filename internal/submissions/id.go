package submissions

import (
	"fmt"

	"github.com/google/uuid"
)

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider issuing UUIDv7 identifiers. The
// time-ordered prefix keeps id order aligned with insertion order, which the
// dashboard relies on when paging newest-first.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

func (uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return value.String(), nil
}
