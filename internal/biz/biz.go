package biz

import (
	"github.com/devricklin/offline-responder/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Policy *usecase.PolicyUsecase
}
