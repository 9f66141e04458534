// Package repo syncs git-hosted pipeline projects into the local workspace.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"martflow/internal/config"
	"martflow/internal/log"
	"martflow/pkg/errors"
	"martflow/pkg/models"
)

// LocalPath returns where a repository's working copy lives.
func LocalPath(repo models.Repository) string {
	if repo.Path != "" {
		return repo.Path
	}
	return filepath.Join(config.GetConfigPath(), "repos", repo.Name)
}

// Sync clones the repository on first use and fast-forwards it afterwards.
// Returns the local project path.
func Sync(ctx context.Context, repo models.Repository) (string, error) {
	path := LocalPath(repo)
	logger := log.Default().WithField("repository", repo.Name)

	if _, err := os.Stat(filepath.Join(path, ".git")); os.IsNotExist(err) {
		logger.Infof("cloning %s", repo.GitURL)

		opts := &git.CloneOptions{URL: repo.GitURL}
		if repo.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
			opts.SingleBranch = true
		}

		if _, err := git.PlainCloneContext(ctx, path, false, opts); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
				fmt.Sprintf("Failed to clone repository %s", repo.Name)).
				WithContext("url", repo.GitURL)
		}
		return path, nil
	}

	r, err := git.PlainOpen(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
			fmt.Sprintf("Failed to open repository %s", repo.Name)).
			WithContext("path", path)
	}

	wt, err := r.Worktree()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRepoSyncFailed, "Failed to open worktree")
	}

	logger.Info("pulling latest changes")
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return "", errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
			fmt.Sprintf("Failed to pull repository %s", repo.Name)).
			WithSuggestions(
				"Check the remote is reachable",
				"Resolve local modifications in the working copy",
			)
	}

	return path, nil
}
