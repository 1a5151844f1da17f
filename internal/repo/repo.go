// Package repo answers read-only questions about the local repository:
// where its root is, which branches exist and where HEAD points.
package repo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotGitRepo indicates the directory is not inside a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// Repo is a handle on an opened repository.
type Repo struct {
	r    *git.Repository
	root string
}

// Open finds the repository containing dir, walking up parent directories.
func Open(dir string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotGitRepo)
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	return &Repo{r: r, root: wt.Filesystem.Root()}, nil
}

// Root returns the top-level directory of the worktree.
func (p *Repo) Root() string { return p.root }

// BranchExists reports whether refs/heads/<name> exists.
func (p *Repo) BranchExists(name string) (bool, error) {
	_, err := p.r.Reference(plumbing.NewBranchReferenceName(name), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving branch %s: %w", name, err)
	}
	return true, nil
}

// CurrentBranch returns the short name of the checked out branch, or "" when
// HEAD is detached.
func (p *Repo) CurrentBranch() (string, error) {
	head, err := p.r.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// HeadCommit returns the full hash HEAD resolves to.
func (p *Repo) HeadCommit() (string, error) {
	head, err := p.r.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
