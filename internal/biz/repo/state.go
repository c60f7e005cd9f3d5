package repo

import (
	"context"

	"github.com/devricklin/offline-responder/internal/biz/domain"
)

// StateRepo persists the responder state between restarts
type StateRepo interface {
	// Load returns the stored state, or a fresh one when nothing is stored
	Load(ctx context.Context) (*domain.ResponderState, error)

	Save(ctx context.Context, state *domain.ResponderState) error
}
