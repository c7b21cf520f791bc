// Package uuid generates refresh cycle identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements posting.IDGenerator with UUIDv7, so cycle IDs sort by
// start time in logs and archived events.
type Generator struct {
	v7 func() (uuid.UUID, error)
	v4 func() (uuid.UUID, error)
}

// New creates a Generator.
func New() *Generator {
	return &Generator{v7: uuid.NewV7, v4: uuid.NewRandom}
}

// NewID returns a UUIDv7 string, or a random UUID when the time-ordered
// variant cannot be produced.
func (g *Generator) NewID() (string, error) {
	id, err := g.v7()
	if err == nil {
		return id.String(), nil
	}
	id, rerr := g.v4()
	if rerr != nil {
		return "", fmt.Errorf("generate cycle id: %w", rerr)
	}
	return id.String(), nil
}
