package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrActorNotFound = errors.New("actor not found")

// Directory is the read side of the user store the scheduling core needs.
type Directory interface {
	LookupActor(ctx context.Context, id uuid.UUID) (*Actor, error)
	IsDoctor(ctx context.Context, id uuid.UUID) (bool, error)
	IsPatient(ctx context.Context, id uuid.UUID) (bool, error)
}
