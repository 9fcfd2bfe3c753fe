package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// GitHubScheme prefixes sources fetched from a GitHub repository:
// github://owner/repo/path/to/file-or-dir[@ref]
const GitHubScheme = "github://"

// supportedExtensions are the file types picked up from directory sources.
var supportedExtensions = []string{".txt", ".jsonl", ".json", ".md"}

// RemoteFetcher reads files from a remote repository.
type RemoteFetcher interface {
	ListFiles(ctx context.Context, dir string, extensions []string) ([]string, error)
	FetchFile(ctx context.Context, filePath string) ([]byte, error)
}

// revisioner is implemented by fetchers that can report the commit they read.
type revisioner interface {
	Revision(ctx context.Context, dir string) (string, error)
}

// FetcherFactory builds a RemoteFetcher for one repository at a ref
// (empty ref means the default branch).
type FetcherFactory func(ctx context.Context, owner, repo, ref string) (RemoteFetcher, error)

// Loader resolves a source string into parsed documents.
type Loader struct {
	remote FetcherFactory
	logger *slog.Logger
}

// NewLoader creates a Loader. remote may be nil, in which case GitHub
// sources are rejected.
func NewLoader(remote FetcherFactory, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		remote: remote,
		logger: logger.With("component", "ingest"),
	}
}

// sourceFile is one file read from a source, before parsing. rel is the
// slash-separated path below the source root and prefixes document ids when
// a source holds several files.
type sourceFile struct {
	name string
	rel  string
	data []byte
}

// Load reads and parses every file behind source, stopping once
// maxDocuments documents have been parsed (maxDocuments <= 0 means no cap).
// It returns ErrNoDocuments when nothing could be parsed.
func (l *Loader) Load(ctx context.Context, source string, maxDocuments int) (*ParseResult, error) {
	var files []sourceFile
	var err error
	if strings.HasPrefix(source, GitHubScheme) {
		files, err = l.readGitHub(ctx, source)
	} else {
		files, err = readLocal(source)
	}
	if err != nil {
		return nil, err
	}

	merged := &ParseResult{}
	prefixIDs := len(files) > 1
	for _, f := range files {
		remaining := 0
		if maxDocuments > 0 {
			remaining = maxDocuments - merged.Parsed
			if remaining <= 0 {
				break
			}
		}

		result, err := Parse(f.name, f.data, remaining)
		if err != nil {
			l.logger.Warn("Failed to parse file", "file", f.name, "error", err)
			merged.Skipped++
			continue
		}

		for _, doc := range result.Documents {
			if prefixIDs {
				doc.ID = f.rel + "/" + doc.ID
			}
			merged.Documents = append(merged.Documents, doc)
		}
		merged.Parsed += result.Parsed
		merged.Skipped += result.Skipped
		l.logger.Debug("Parsed file", "file", f.name, "documents", result.Parsed, "skipped", result.Skipped)
	}

	l.logger.Info("Loaded source", "source", source, "documents", merged.Parsed, "skipped", merged.Skipped)
	if merged.Parsed == 0 {
		return merged, fmt.Errorf("%w: %s (%d units skipped)", ErrNoDocuments, source, merged.Skipped)
	}
	return merged, nil
}

func readLocal(source string) ([]sourceFile, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return []sourceFile{{name: source, rel: filepath.Base(source), data: data}}, nil
	}

	var names []string
	err = filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasSupportedExtension(p) {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source: %w", err)
	}
	sort.Strings(names)

	files := make([]sourceFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		rel, err := filepath.Rel(source, name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		files = append(files, sourceFile{name: name, rel: filepath.ToSlash(rel), data: data})
	}
	return files, nil
}

func (l *Loader) readGitHub(ctx context.Context, source string) ([]sourceFile, error) {
	if l.remote == nil {
		return nil, fmt.Errorf("github sources are not configured: %s", source)
	}

	owner, repo, filePath, ref, err := ParseGitHubSource(source)
	if err != nil {
		return nil, err
	}

	fetcher, err := l.remote(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	if rev, ok := fetcher.(revisioner); ok {
		if sha, err := rev.Revision(ctx, filePath); err == nil {
			l.logger.Info("Fetching GitHub source", "repo", owner+"/"+repo, "path", filePath, "commit", sha)
		}
	}

	paths := []string{filePath}
	if !hasSupportedExtension(filePath) {
		paths, err = fetcher.ListFiles(ctx, filePath, supportedExtensions)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", source, err)
		}
	}

	files := make([]sourceFile, 0, len(paths))
	for _, p := range paths {
		data, err := fetcher.FetchFile(ctx, p)
		if err != nil {
			l.logger.Warn("Failed to fetch file", "path", p, "error", err)
			continue
		}
		files = append(files, sourceFile{name: p, rel: relativeTo(filePath, p), data: data})
	}
	return files, nil
}

// ParseGitHubSource splits github://owner/repo/path[@ref] into its parts.
func ParseGitHubSource(source string) (owner, repo, filePath, ref string, err error) {
	rest := strings.TrimPrefix(source, GitHubScheme)
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		ref = rest[at+1:]
		rest = rest[:at]
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", "", fmt.Errorf("invalid github source %q: want github://owner/repo/path[@ref]", source)
	}
	owner, repo = parts[0], parts[1]
	if len(parts) == 3 {
		filePath = strings.Trim(parts[2], "/")
	}
	return owner, repo, filePath, ref, nil
}

// relativeTo strips the repository directory root from p.
func relativeTo(root, p string) string {
	if root == "" {
		return p
	}
	if rel := strings.TrimPrefix(p, root+"/"); rel != p {
		return rel
	}
	return path.Base(p)
}

func hasSupportedExtension(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, want := range supportedExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
