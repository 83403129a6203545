package rulesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/cloudassure/engine/internal/app/ruleload"
)

// GitConfig contains configuration for the git rule-pack source.
type GitConfig struct {
	URL    string
	Branch string
	Path   string // subdirectory holding the rule packs
	Token  string // optional access token
}

// GitSource fetches rule packs from a git repository. It clones on first
// use and pulls on every subsequent fetch. Safe for concurrent use.
type GitSource struct {
	config GitConfig
	auth   transport.AuthMethod

	mu      sync.Mutex
	tempDir string
	repo    *git.Repository
}

// NewGitSource creates a git rule-pack source.
func NewGitSource(config GitConfig) *GitSource {
	s := &GitSource{config: config}
	if config.Token != "" {
		s.auth = &http.BasicAuth{
			Username: "x-access-token", // GitHub/GitLab convention
			Password: config.Token,
		}
	}
	return s
}

// Fetch clones or updates the repository and reads the rule packs under
// the configured path via the directory source.
func (s *GitSource) Fetch(ctx context.Context) ([]ruleload.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tempDir == "" {
		dir, err := os.MkdirTemp("", "rulepacks-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp dir: %w", err)
		}
		s.tempDir = dir
	}

	if s.repo == nil {
		repo, err := git.PlainCloneContext(ctx, s.tempDir, false, &git.CloneOptions{
			URL:           s.config.URL,
			ReferenceName: plumbing.NewBranchReferenceName(s.branch()),
			SingleBranch:  true,
			Depth:         1,
			Auth:          s.auth,
		})
		if err != nil {
			return nil, fmt.Errorf("cloning rule-pack repository: %w", err)
		}
		s.repo = repo
	} else if err := s.pull(ctx); err != nil {
		return nil, err
	}

	root := s.tempDir
	if s.config.Path != "" {
		root = filepath.Join(s.tempDir, s.config.Path)
	}
	return NewFSSource(root).Fetch(ctx)
}

func (s *GitSource) pull(ctx context.Context) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	err = worktree.PullContext(ctx, &git.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(s.branch()),
		SingleBranch:  true,
		Auth:          s.auth,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pulling rule-pack repository: %w", err)
	}
	return nil
}

func (s *GitSource) branch() string {
	if s.config.Branch == "" {
		return "main"
	}
	return s.config.Branch
}

// Close removes the source's working copy.
func (s *GitSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tempDir == "" {
		return nil
	}
	dir := s.tempDir
	s.tempDir = ""
	s.repo = nil
	return os.RemoveAll(dir)
}
