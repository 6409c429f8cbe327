package staleness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/memory"
)

func hashOf(t *testing.T, content string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestCheckRefVerifiedWhenHashMatches(t *testing.T) {
	dir := t.TempDir()
	content := "package main\n\nfunc main() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(content), 0o644))

	checker := NewChecker(dir)
	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go", ContentHash: hashOf(t, content)}

	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefVerified, result.Status)
}

func TestCheckRefNeedsReviewWhenUncommittedContentChanged(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("v2"), 0o644))

	checker := NewChecker(dir)
	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go", ContentHash: hashOf(t, "v1")}

	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefNeedsReview, result.Status)
}

func TestCheckRefVerifiedWhenUncommittedChangeIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("v2"), 0o644))

	checker := NewChecker(dir)
	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go", ContentHash: hashOf(t, "v1")}

	result := checker.checkRef(context.Background(), ref, false)
	assert.Equal(t, RefVerified, result.Status)
}

func TestCheckRefStaleWhenFileMissing(t *testing.T) {
	checker := NewChecker(t.TempDir())
	ref := memory.CodeReference{Type: memory.RefFile, Path: "gone.go", ContentHash: "abc"}

	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefStale, result.Status)
}

func TestCheckRefVerifiedWhenNoRecordedHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("x"), 0o644))

	checker := NewChecker(dir)
	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go"}

	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefVerified, result.Status)
}

func TestCheckMemoryRollsUpToWorstStatus(t *testing.T) {
	dir := t.TempDir()
	goodContent := "good"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.go"), []byte(goodContent), 0o644))

	checker := NewChecker(dir)
	m := memory.MemoryObject{
		ID: "m1",
		CodeRefs: []memory.CodeReference{
			{Type: memory.RefFile, Path: "good.go", ContentHash: hashOf(t, goodContent)},
			{Type: memory.RefFile, Path: "missing.go", ContentHash: "whatever"},
		},
	}

	result := checker.CheckMemory(context.Background(), m)
	assert.Equal(t, RefStale, result.Status)
	assert.Len(t, result.Refs, 2)
}

func TestCheckMemoryNeedsReviewWithNoCodeRefs(t *testing.T) {
	checker := NewChecker(t.TempDir())
	result := checker.CheckMemory(context.Background(), memory.MemoryObject{ID: "m1"})
	assert.Equal(t, RefNeedsReview, result.Status)
}

// runGit shells out to git for test fixture setup; skips the test if git
// isn't on PATH rather than failing the whole suite in a minimal sandbox.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com", "GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("git unavailable in test environment: %v: %s", err, out)
	}
}

func TestCheckRefNeedsReviewWhenCommittedSinceVerification(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("v1"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "v1")

	checker := NewChecker(dir)
	head, err := checker.HeadCommit(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("v2"), 0o644))
	runGit(t, dir, "commit", "-am", "v2")

	// The file's content now differs from what was true at the stamped
	// commit, but "commit wins": even if it were reverted back to v1, the
	// presence of an intervening commit is what drives needs_review.
	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go", VerifiedAtCommit: head, ContentHash: hashOf(t, "v1")}
	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefNeedsReview, result.Status)
}

func TestCheckRefVerifiedWhenNoCommitsSinceVerification(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("v1"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "v1")

	checker := NewChecker(dir)
	head, err := checker.HeadCommit(context.Background())
	require.NoError(t, err)

	ref := memory.CodeReference{Type: memory.RefFile, Path: "main.go", VerifiedAtCommit: head, ContentHash: hashOf(t, "v1")}
	result := checker.checkRef(context.Background(), ref, true)
	assert.Equal(t, RefVerified, result.Status)
}
