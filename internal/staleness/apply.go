package staleness

import (
	"context"
	"fmt"

	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/memory"
)

// Applier feeds Checker verdicts back into the memory store (spec §4.F:
// staleness classification is read-only; only the applier mutates).
type Applier struct {
	store *memory.Store
	check *Checker
}

// NewApplier constructs an Applier.
func NewApplier(store *memory.Store, check *Checker) *Applier {
	return &Applier{store: store, check: check}
}

// markVerified applies a RefVerified result: it stamps every ref's
// verifiedAtCommit to current HEAD via Store.Verify. An empty atCommit
// resolves against the checker's git repository; a needs_review or stale
// result is left untouched (no destructive action without a concrete
// stale signal) (spec §4.F "markVerified stamps every ref's
// verifiedAtCommit to current HEAD").
func (a *Applier) markVerified(ctx context.Context, result MemoryResult, atCommit string) error {
	if result.Status != RefVerified {
		return nil
	}
	if atCommit == "" {
		head, err := a.check.HeadCommit(ctx)
		if err != nil {
			return fmt.Errorf("staleness: resolve HEAD failed: %w", err)
		}
		atCommit = head
	}
	if _, err := a.store.Verify(ctx, result.MemoryID, atCommit); err != nil {
		return fmt.Errorf("staleness: verify failed: %w", err)
	}
	return nil
}

// markStale applies a RefStale result by transitioning the memory to
// status=stale (spec §4.F).
func (a *Applier) markStale(ctx context.Context, result MemoryResult) error {
	if result.Status != RefStale {
		return nil
	}
	if _, err := a.store.MarkStale(ctx, result.MemoryID, "code reference changed or disappeared"); err != nil {
		return fmt.Errorf("staleness: mark stale failed: %w", err)
	}
	return nil
}

// AutoVerifyUnchanged runs CheckMemory over every active memory with code
// refs and applies the resulting verdicts (spec §4.F "auto-verification
// pass"). It is a maintenance operation, never run inline on a hot path.
func (a *Applier) AutoVerifyUnchanged(ctx context.Context, atCommit string) (verified, staled int, err error) {
	timer := logging.StartTimer(logging.CategoryStaleness, "AutoVerifyUnchanged")
	defer timer.Stop()

	memories, err := a.store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}})
	if err != nil {
		return 0, 0, fmt.Errorf("staleness: list failed: %w", err)
	}

	for _, m := range memories {
		if len(m.CodeRefs) == 0 {
			continue
		}
		result := a.check.CheckMemory(ctx, m)
		switch result.Status {
		case RefVerified:
			if err := a.markVerified(ctx, result, atCommit); err == nil {
				verified++
			}
		case RefStale:
			if err := a.markStale(ctx, result); err == nil {
				staled++
			}
		}
	}
	return verified, staled, nil
}
