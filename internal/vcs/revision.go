package vcs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
)

// ErrNoRepository is returned when the path is not inside a git work tree.
var ErrNoRepository = errors.New("not a git repository")

// Revision returns the commit hash HEAD points at in the repository
// containing path. Parent directories are searched for the .git directory.
func Revision(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", ErrNoRepository
		}
		return "", fmt.Errorf("failed to open git repository at %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	slog.Debug("Resolved build context revision", "path", path, "revision", head.Hash().String())
	return head.Hash().String(), nil
}
