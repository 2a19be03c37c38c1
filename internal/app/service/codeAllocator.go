package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/storage"
)

// MaxGenerateAttempts bounds how many random codes are probed before the
// allocator stops checking and lets the store's unique index decide.
const MaxGenerateAttempts = 5

// AllocatorStore is the part of LinkStorage the allocator needs.
type AllocatorStore interface {
	InsertLink(context.Context, storage.Link) (*storage.Link, error)
	FindLiveByCode(context.Context, string) (*storage.Link, error)
	CodeExists(context.Context, string) (bool, error)
}

// CodeAllocator issues short codes and inserts new links.
type CodeAllocator struct {
	store       AllocatorStore
	generator   CodeGenerator
	now         func() time.Time
	maxAttempts int
}

func NewCodeAllocator(store AllocatorStore, generator CodeGenerator, now func() time.Time) *CodeAllocator {
	if generator == nil {
		generator = RandomCodeGenerator{Length: GeneratedCodeLength}
	}
	if now == nil {
		now = time.Now
	}
	return &CodeAllocator{
		store:       store,
		generator:   generator,
		now:         now,
		maxAttempts: MaxGenerateAttempts,
	}
}

// Allocate creates a live link for ownerID pointing at rawTarget. An empty
// requestedCode asks for a generated one.
func (a *CodeAllocator) Allocate(ctx context.Context, ownerID, rawTarget, requestedCode string) (*storage.Link, error) {
	const op = "service.Allocate"

	target, err := NormalizeTarget(rawTarget)
	if err != nil {
		return nil, errx.E(op, errx.InvalidTarget, err)
	}

	var code string
	if requestedCode != "" {
		code, err = a.checkRequested(ctx, requestedCode)
	} else {
		code, err = a.generate(ctx)
	}
	if err != nil {
		return nil, err
	}

	created, err := a.store.InsertLink(ctx, storage.Link{
		Code:      code,
		Target:    target,
		OwnerID:   ownerID,
		CreatedAt: a.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, errx.E(op, errx.CodeConflict, fmt.Errorf("code %q is taken", code))
		}
		return nil, errx.E(op, errx.Transient, err)
	}

	return created, nil
}

func (a *CodeAllocator) checkRequested(ctx context.Context, code string) (string, error) {
	const op = "service.Allocate"

	if !ValidCode(code) {
		return "", errx.E(op, errx.InvalidCode, fmt.Errorf("code %q must match [A-Za-z0-9]{6,8}", code))
	}

	_, err := a.store.FindLiveByCode(ctx, code)
	switch {
	case err == nil:
		return "", errx.E(op, errx.CodeConflict, fmt.Errorf("code %q is taken", code))
	case errors.Is(err, storage.ErrNotFound):
		return code, nil
	default:
		return "", errx.E(op, errx.Transient, err)
	}
}

// generate probes up to maxAttempts random codes against every row, live or
// deleted. When all of them collide the last one is returned anyway.
func (a *CodeAllocator) generate(ctx context.Context) (string, error) {
	const op = "service.Allocate"

	var code string
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate, err := a.generator.Generate()
		if err != nil {
			return "", errx.E(op, errx.Transient, err)
		}
		code = candidate

		exists, err := a.store.CodeExists(ctx, code)
		if err != nil {
			return "", errx.E(op, errx.Transient, err)
		}
		if !exists {
			return code, nil
		}
	}

	return code, nil
}
