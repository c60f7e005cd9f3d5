package api

import (
	"context"
	"errors"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// ErrHistoryUnavailable is returned when no history archive is configured
var ErrHistoryUnavailable = errors.New("history not available")

// Local serves the Responder surface in-process, without HTTP
type Local struct {
	controller Controller
	history    repo.HistoryRepo
}

var _ Responder = (*Local)(nil)

// NewLocal wraps a controller. history may be nil.
func NewLocal(controller Controller, history repo.HistoryRepo) *Local {
	return &Local{controller: controller, history: history}
}

func (l *Local) Status(ctx context.Context) (*StatusResponse, error) {
	resp := toStatusResponse(l.controller.Status())
	return &resp, nil
}

func (l *Local) SetOnline(ctx context.Context) (*StateChangeResponse, error) {
	changed, err := l.controller.SetOnline(ctx)
	if err != nil {
		return nil, err
	}
	return &StateChangeResponse{State: "ONLINE", Changed: changed}, nil
}

func (l *Local) SetOffline(ctx context.Context) (*StateChangeResponse, error) {
	changed, err := l.controller.SetOffline(ctx)
	if err != nil {
		return nil, err
	}
	return &StateChangeResponse{State: "OFFLINE", Changed: changed}, nil
}

func (l *Local) Pending(ctx context.Context, limit int) (*PendingResponse, error) {
	return &PendingResponse{
		Total:    l.controller.Status().PendingCount,
		Messages: l.controller.Pending(limit),
		Summary:  l.controller.PendingSummary(limit),
	}, nil
}

func (l *Local) ClearPending(ctx context.Context) (int, error) {
	return l.controller.ClearPending(ctx)
}

func (l *Local) History(ctx context.Context, limit int) (*HistoryResponse, error) {
	if l.history == nil {
		return nil, ErrHistoryUnavailable
	}
	entries, err := l.history.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	return &HistoryResponse{Entries: entries}, nil
}
