package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	filepathx "github.com/yargevad/filepathx"

	"github.com/myselfgus/vibe/internal/models"
)

// ExportResult describes a finished workspace export.
type ExportResult struct {
	Dir        string `json:"dir"`
	FileCount  int    `json:"fileCount"`
	CommitHash string `json:"commitHash,omitempty"`
}

// WorkspaceService materializes a session's generated file tree on disk and
// snapshots it as a git commit so users can diff regenerations.
type WorkspaceService struct {
	baseDir string
}

func NewWorkspaceService(baseDir string) *WorkspaceService {
	return &WorkspaceService{baseDir: baseDir}
}

// Export writes the session's files under <baseDir>/<sessionID> and commits
// the tree. Re-exporting the same session layers a new commit on the
// existing repository.
func (s *WorkspaceService) Export(state *models.SessionState) (*ExportResult, error) {
	if state == nil || len(state.Files) == 0 {
		return nil, fmt.Errorf("session has no files to export")
	}

	dir := filepath.Join(s.baseDir, state.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	for _, path := range state.SortedFilePaths() {
		target, err := resolveWithin(dir, path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(state.Files[path].Content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}

	written, err := filepathx.Glob(filepath.Join(dir, "**"))
	if err != nil {
		return nil, fmt.Errorf("verify export: %w", err)
	}
	count := 0
	for _, p := range written {
		if info, err := os.Stat(p); err == nil && !info.IsDir() && !strings.Contains(p, string(filepath.Separator)+".git"+string(filepath.Separator)) {
			count++
		}
	}
	if count < len(state.Files) {
		return nil, fmt.Errorf("export incomplete: wrote %d of %d files", count, len(state.Files))
	}

	hash, err := s.commit(dir, state.ID)
	if err != nil {
		return nil, err
	}
	return &ExportResult{Dir: dir, FileCount: len(state.Files), CommitHash: hash}, nil
}

func (s *WorkspaceService) commit(dir, sessionID string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return "", fmt.Errorf("open export repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddGlob("."); err != nil {
		return "", fmt.Errorf("stage export: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		// Nothing changed since the last export; keep the existing head.
		head, err := repo.Head()
		if err != nil {
			return "", nil
		}
		return head.Hash().String(), nil
	}

	hash, err := wt.Commit(fmt.Sprintf("export session %s", sessionID), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "vibe",
			Email: "vibe@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit export: %w", err)
	}
	return hash.String(), nil
}

// resolveWithin joins a relative session path to root, rejecting anything
// that would escape it.
func resolveWithin(root, path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal file path %q", path)
	}
	return filepath.Join(root, cleaned), nil
}
