package driver

import (
	"fmt"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// Provenance resolves the HEAD commit of the git repository containing the
// given source file, walking upward to find the checkout root. Programs record
// their source file; stamping runs with the commit ties a transcript back to
// the exact sources it came from.
func Provenance(srcPath string) (string, error) {
	if srcPath == "" {
		return "", fmt.Errorf("provenance: empty source path")
	}
	dir := filepath.Dir(srcPath)
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("provenance: no repository above %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("provenance: %w", err)
	}
	return head.Hash().String(), nil
}
