// Package project resolves which on-disk database a given working
// directory belongs to, per spec §6 ("Persisted state layout" /
// "Project discovery").
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// rootMarkers are checked, in order, when walking upward from cwd.
var rootMarkers = []string{".git", "package.json", "Cargo.toml", "pyproject.toml", "go.mod"}

// Info describes a resolved project: its root directory (or "" for the
// global fallback), display name, and database path.
type Info struct {
	ProjectPath string `json:"projectPath"`
	ProjectName string `json:"projectName"`
	CreatedAt   string `json:"createdAt"`

	DBPath string `json:"-"`
}

// FindRoot walks upward from start looking for a directory containing one
// of the recognised root markers. Returns "" if none is found before
// reaching the filesystem root.
func FindRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Resolve determines the database location for the project containing cwd,
// honoring an explicit dbPathOverride (ALEXANDRIA_DB_PATH) when non-empty.
func Resolve(cwd, dbPathOverride string) (Info, error) {
	if dbPathOverride != "" {
		return Info{DBPath: dbPathOverride, ProjectPath: cwd}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Info{}, fmt.Errorf("project: could not determine home directory: %w", err)
	}
	base := filepath.Join(home, ".alexandria", "projects")

	root := FindRoot(cwd)
	if root == "" {
		dir := filepath.Join(base, "_global")
		return ensureProjectDir(dir, Info{ProjectPath: "", ProjectName: "_global"})
	}

	name := filepath.Base(root)
	hash := sha256.Sum256([]byte(root))
	suffix := hex.EncodeToString(hash[:])[:12]
	dirName := fmt.Sprintf("%s_%s", sanitizeName(name), suffix)
	dir := filepath.Join(base, dirName)
	return ensureProjectDir(dir, Info{ProjectPath: root, ProjectName: name})
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "project"
	}
	return string(out)
}

func ensureProjectDir(dir string, info Info) (Info, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("project: failed to create project dir %s: %w", dir, err)
	}
	info.DBPath = filepath.Join(dir, "alexandria.db")

	metaPath := filepath.Join(dir, "project.json")
	if existing, err := os.ReadFile(metaPath); err == nil {
		var prev Info
		if json.Unmarshal(existing, &prev) == nil && prev.CreatedAt != "" {
			info.CreatedAt = prev.CreatedAt
			return info, nil
		}
	}

	info.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return info, fmt.Errorf("project: failed to encode project.json: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return info, fmt.Errorf("project: failed to write project.json: %w", err)
	}
	return info, nil
}
