package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/storage"
)

// ClickStore is the part of LinkStorage the recorder needs.
type ClickStore interface {
	FindLiveByCode(context.Context, string) (*storage.Link, error)
	IncrementClicks(ctx context.Context, code string, at time.Time) error
}

// ClickRecorder resolves a code to its target and counts the visit.
type ClickRecorder struct {
	store ClickStore
	now   func() time.Time
}

func NewClickRecorder(store ClickStore, now func() time.Time) *ClickRecorder {
	if now == nil {
		now = time.Now
	}
	return &ClickRecorder{store: store, now: now}
}

// ResolveAndRecord returns the target of the live link with code and bumps
// its counter. When only the increment fails the target is returned along
// with a Transient error so the caller can still redirect.
func (r *ClickRecorder) ResolveAndRecord(ctx context.Context, code string) (string, error) {
	const op = "service.ResolveAndRecord"

	if !ValidCode(code) {
		return "", errx.E(op, errx.InvalidCode, fmt.Errorf("malformed code %q", code))
	}

	link, err := r.store.FindLiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", errx.E(op, errx.NotFound, err)
		}
		return "", errx.E(op, errx.Transient, err)
	}

	if err := r.store.IncrementClicks(ctx, code, r.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", errx.E(op, errx.NotFound, err)
		}
		return link.Target, errx.E(op, errx.Transient, fmt.Errorf("record click: %w", err))
	}

	return link.Target, nil
}
