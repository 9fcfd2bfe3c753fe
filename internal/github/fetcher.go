package github

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/go-github/v81/github"
)

// Fetcher reads files from one repository at a fixed ref.
type Fetcher struct {
	client *Client
	owner  string
	repo   string
	ref    string // Empty means the default branch
}

// NewFetcher creates a fetcher for owner/repo at ref.
func NewFetcher(client *Client, owner, repo, ref string) *Fetcher {
	return &Fetcher{
		client: client,
		owner:  owner,
		repo:   repo,
		ref:    ref,
	}
}

func (f *Fetcher) contentOptions() *github.RepositoryContentGetOptions {
	if f.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

// ListFiles recursively lists files under dir whose extension is in
// extensions. Paths are repository-relative and sorted.
func (f *Fetcher) ListFiles(ctx context.Context, dir string, extensions []string) ([]string, error) {
	files, err := f.listRecursive(ctx, dir, extensions)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *Fetcher) listRecursive(ctx context.Context, dir string, extensions []string) ([]string, error) {
	_, entries, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, dir, f.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		entryPath := path.Join(dir, entry.GetName())
		switch entry.GetType() {
		case "file":
			if matchesExtension(entry.GetName(), extensions) {
				files = append(files, entryPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, entryPath, extensions)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

// FetchFile returns the decoded content of a single file.
func (f *Fetcher) FetchFile(ctx context.Context, filePath string) ([]byte, error) {
	file, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, filePath, f.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", filePath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", filePath)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", filePath, err)
	}
	return []byte(content), nil
}

// Revision returns the SHA of the latest commit touching dir at the fetcher's ref.
func (f *Fetcher) Revision(ctx context.Context, dir string) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, &github.CommitsListOptions{
		SHA:         f.ref,
		Path:        dir,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %s", dir)
	}
	return commits[0].GetSHA(), nil
}

func matchesExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
