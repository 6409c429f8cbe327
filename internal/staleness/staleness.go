// Package staleness classifies whether a memory's code references still
// match the working tree (spec §4.F). Verification never mutates a memory
// directly; it reports classifications that callers feed back through
// memory.Store.Verify / MarkStale.
package staleness

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/franalgaba/alexandria/internal/memory"
)

// RefStatus is one code reference's verification result.
type RefStatus string

const (
	RefVerified    RefStatus = "verified"
	RefStale       RefStatus = "stale"
	RefNeedsReview RefStatus = "needs_review"
)

// RefResult is the per-reference classification.
type RefResult struct {
	Ref    memory.CodeReference
	Status RefStatus
	Reason string
}

// MemoryResult rolls every code ref's status up to a single
// memory-level verdict (spec §4.F: "worst status wins").
type MemoryResult struct {
	MemoryID string
	Status   RefStatus
	Refs     []RefResult
}

// Checker classifies code references against a project root on disk,
// consulting git history when the root is a git repository (spec §4.F
// "commit wins": a ref's verifiedAtCommit stamp is authoritative over a
// same-content-now coincidence).
type Checker struct {
	root string

	gitOnce     sync.Once
	isGitRepo   bool
}

// NewChecker constructs a Checker rooted at projectRoot.
func NewChecker(projectRoot string) *Checker {
	return &Checker{root: projectRoot}
}

// CheckMemory classifies every code ref on m and rolls the result up
// (spec §4.F) with includeUncommitted on, so a content-hash mismatch on a
// ref with no git evidence triggers needs_review. CheckMemoryStrict is the
// git-only variant.
func (c *Checker) CheckMemory(ctx context.Context, m memory.MemoryObject) MemoryResult {
	return c.checkMemory(ctx, m, true)
}

// CheckMemoryStrict is CheckMemory with includeUncommitted forced off: only
// missing paths and git-attested commits change the verdict, so a dirty
// working tree never produces a false needs_review (spec §4.F).
func (c *Checker) CheckMemoryStrict(ctx context.Context, m memory.MemoryObject) MemoryResult {
	return c.checkMemory(ctx, m, false)
}

func (c *Checker) checkMemory(ctx context.Context, m memory.MemoryObject, includeUncommitted bool) MemoryResult {
	result := MemoryResult{MemoryID: m.ID, Status: RefVerified}
	for _, ref := range m.CodeRefs {
		select {
		case <-ctx.Done():
			return result
		default:
		}
		rr := c.checkRef(ctx, ref, includeUncommitted)
		result.Refs = append(result.Refs, rr)
		if rank(rr.Status) > rank(result.Status) {
			result.Status = rr.Status
		}
	}
	if len(m.CodeRefs) == 0 {
		result.Status = RefNeedsReview
	}
	return result
}

// rank orders statuses worst-to-best for the rollup: stale(2) > needs_review(1) > verified(0).
func rank(s RefStatus) int {
	switch s {
	case RefStale:
		return 2
	case RefNeedsReview:
		return 1
	default:
		return 0
	}
}

// checkRef classifies a single code reference (spec §4.F):
//  1. stale if the referenced path no longer exists.
//  2. needs_review if the ref carries a verifiedAtCommit, the project is a
//     git repo, and the file has any commit since that one ("commit wins":
//     git history is authoritative even if the content now matches again).
//  3. needs_review if there's no usable git evidence (no repo, or no
//     commit stamp) but a content hash is recorded, includeUncommitted was
//     requested, and the hash no longer matches.
//  4. verified otherwise.
func (c *Checker) checkRef(ctx context.Context, ref memory.CodeReference, includeUncommitted bool) RefResult {
	absPath := filepath.Join(c.root, ref.Path)
	info, err := os.Stat(absPath)
	if err != nil {
		return RefResult{Ref: ref, Status: RefStale, Reason: "referenced path no longer exists"}
	}
	if info.IsDir() {
		return RefResult{Ref: ref, Status: RefNeedsReview, Reason: "referenced path is a directory"}
	}

	if ref.VerifiedAtCommit != "" && c.repoIsGit() {
		changed, err := c.changedSinceCommit(ctx, ref.Path, ref.VerifiedAtCommit)
		if err == nil {
			if changed {
				return RefResult{Ref: ref, Status: RefNeedsReview, Reason: "file has commits since its last verified commit"}
			}
			return RefResult{Ref: ref, Status: RefVerified, Reason: "no commits touching file since verification"}
		}
		// git history unusable (e.g. the stamped commit is unknown, or it
		// was rewritten away). The content-hash signal below applies only
		// when there is no repo or no commit stamp, so such a ref falls
		// through to verified.
	}

	if includeUncommitted && ref.ContentHash != "" && (ref.VerifiedAtCommit == "" || !c.repoIsGit()) {
		hash, err := hashFile(absPath)
		if err != nil {
			return RefResult{Ref: ref, Status: RefNeedsReview, Reason: fmt.Sprintf("could not read file: %v", err)}
		}
		if hash != ref.ContentHash {
			return RefResult{Ref: ref, Status: RefNeedsReview, Reason: "uncommitted content changed since last verification"}
		}
	}

	return RefResult{Ref: ref, Status: RefVerified, Reason: "no stronger signal contradicts verification"}
}

// repoIsGit reports whether c.root is inside a git working tree, cached
// for the lifetime of the Checker since the answer cannot change mid-run.
func (c *Checker) repoIsGit() bool {
	c.gitOnce.Do(func() {
		_, err := os.Stat(filepath.Join(c.root, ".git"))
		c.isGitRepo = err == nil
	})
	return c.isGitRepo
}

// changedSinceCommit reports whether path has any commit after atCommit
// reachable from HEAD (spec §4.F "commit wins").
func (c *Checker) changedSinceCommit(ctx context.Context, path, atCommit string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "--oneline", atCommit+"..HEAD", "--", path)
	cmd.Dir = c.root
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("git log failed: %w: %s", err, strings.TrimSpace(out.String()))
	}
	return out.Len() > 0, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HeadCommit returns the repository's current HEAD commit hash, used by
// the applier to stamp verifiedAtCommit (spec §4.F "markVerified stamps
// every ref's verifiedAtCommit to current HEAD").
func (c *Checker) HeadCommit(ctx context.Context) (string, error) {
	if !c.repoIsGit() {
		return "", fmt.Errorf("staleness: %s is not a git repository", c.root)
	}
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = c.root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
