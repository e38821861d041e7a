package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rxtech-lab/auditsmart/internal/models"
)

type HookService interface {
	AddHook(hook Hook) error
	// OnTransactionConfirmed runs every hook that handles tx.TransactionType.
	// A failing hook does not stop the others; all failures are joined.
	OnTransactionConfirmed(ctx context.Context, tx models.ConfirmedTransaction) error
}

type hookService struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewHookService() HookService {
	return &hookService{
		hooks: []Hook{},
	}
}

func (h *hookService) AddHook(hook Hook) error {
	if hook == nil {
		return errors.New("hook is nil")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
	return nil
}

func (h *hookService) OnTransactionConfirmed(ctx context.Context, tx models.ConfirmedTransaction) error {
	h.mu.RLock()
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if !hook.CanHandle(tx.TransactionType) {
			continue
		}
		if err := hook.OnTransactionConfirmed(ctx, tx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
