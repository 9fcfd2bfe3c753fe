package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	files   map[string]string
	listed  string
	fetched []string
}

func (f *fakeFetcher) ListFiles(_ context.Context, dir string, _ []string) ([]string, error) {
	f.listed = dir
	var out []string
	for p := range f.files {
		if strings.HasPrefix(p, dir) && hasSupportedExtension(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeFetcher) FetchFile(_ context.Context, p string) ([]byte, error) {
	f.fetched = append(f.fetched, p)
	content, ok := f.files[p]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(content), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "news.txt",
		`{"text": "苹果公司发布了最新的iPhone 15系列手机。", "category": "科技"}`+"\n"+
			`{"text": "中国足球队在亚洲杯预选赛中获胜。", "category": "体育"}`)

	result, err := NewLoader(nil, nil).Load(context.Background(), p, 0)
	require.NoError(t, err)

	require.Len(t, result.Documents, 2)
	assert.Equal(t, "news_0", result.Documents[0].ID)
	assert.Equal(t, "news_1", result.Documents[1].ID)
}

func TestLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", `{"text": "第一条新闻内容", "category": "科技"}`)
	writeFile(t, dir, "b.md", "# Guide\n\nSome guide content.\n")
	writeFile(t, dir, "ignored.csv", "x,y,z")

	result, err := NewLoader(nil, nil).Load(context.Background(), dir, 0)
	require.NoError(t, err)

	require.Len(t, result.Documents, 2)
	assert.Equal(t, "a.txt/news_0", result.Documents[0].ID)
	assert.Equal(t, "b.md/section_0", result.Documents[1].ID)
}

func TestLoader_SameNameInSiblingDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o755))
		writeFile(t, filepath.Join(dir, sub), "news.txt", `{"text": "同名文件中的新闻内容", "category": "科技"}`)
	}

	result, err := NewLoader(nil, nil).Load(context.Background(), dir, 0)
	require.NoError(t, err)

	require.Len(t, result.Documents, 2)
	assert.Equal(t, "a/news.txt/news_0", result.Documents[0].ID)
	assert.Equal(t, "b/news.txt/news_0", result.Documents[1].ID)
}

func TestLoader_GitHubSameNameInSiblingDirectories(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]string{
		"docs/guide/README.md": "# Guide\n\nGuide section.\n",
		"docs/api/README.md":   "# API\n\nAPI section.\n",
	}}
	factory := func(context.Context, string, string, string) (RemoteFetcher, error) {
		return fetcher, nil
	}

	result, err := NewLoader(factory, nil).Load(context.Background(), "github://acme/corpus/docs", 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(result.Documents))
	for _, doc := range result.Documents {
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"api/README.md/section_0", "guide/README.md/section_0"}, ids)
}

func TestLoader_MaxDocumentsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", `{"text": "一", "category": "c"}`+"\n"+`{"text": "二", "category": "c"}`)
	writeFile(t, dir, "b.txt", `{"text": "三", "category": "c"}`)

	result, err := NewLoader(nil, nil).Load(context.Background(), dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Parsed)
	for _, doc := range result.Documents {
		assert.True(t, strings.HasPrefix(doc.ID, "a.txt/"))
	}
}

func TestLoader_NoDocuments(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "empty.txt", "   \n\n")

	_, err := NewLoader(nil, nil).Load(context.Background(), p, 0)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestLoader_MissingSource(t *testing.T) {
	_, err := NewLoader(nil, nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_GitHub(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]string{
		"docs/a.md":     "# A\n\nAlpha section.\n",
		"docs/b.jsonl":  `{"text": "远程新闻内容", "category": "科技"}`,
		"docs/logo.png": "binary",
	}}
	var gotOwner, gotRepo, gotRef string
	factory := func(_ context.Context, owner, repo, ref string) (RemoteFetcher, error) {
		gotOwner, gotRepo, gotRef = owner, repo, ref
		return fetcher, nil
	}

	result, err := NewLoader(factory, nil).Load(context.Background(), "github://acme/corpus/docs@v1", 0)
	require.NoError(t, err)

	assert.Equal(t, "acme", gotOwner)
	assert.Equal(t, "corpus", gotRepo)
	assert.Equal(t, "v1", gotRef)
	assert.Equal(t, "docs", fetcher.listed)
	assert.Equal(t, []string{"docs/a.md", "docs/b.jsonl"}, fetcher.fetched)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "a.md/section_0", result.Documents[0].ID)
}

func TestLoader_GitHubSingleFile(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]string{
		"data/news.txt": `{"text": "远程新闻内容", "category": "科技"}`,
	}}
	factory := func(context.Context, string, string, string) (RemoteFetcher, error) {
		return fetcher, nil
	}

	result, err := NewLoader(factory, nil).Load(context.Background(), "github://acme/corpus/data/news.txt", 0)
	require.NoError(t, err)

	assert.Empty(t, fetcher.listed)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "news_0", result.Documents[0].ID)
}

func TestLoader_GitHubNotConfigured(t *testing.T) {
	_, err := NewLoader(nil, nil).Load(context.Background(), "github://acme/corpus/docs", 0)
	assert.Error(t, err)
}

func TestParseGitHubSource(t *testing.T) {
	tests := []struct {
		source                 string
		owner, repo, path, ref string
		wantErr                bool
	}{
		{source: "github://acme/corpus", owner: "acme", repo: "corpus"},
		{source: "github://acme/corpus/docs/", owner: "acme", repo: "corpus", path: "docs"},
		{source: "github://acme/corpus/data/news.txt@main", owner: "acme", repo: "corpus", path: "data/news.txt", ref: "main"},
		{source: "github://acme", wantErr: true},
		{source: "github:///corpus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			owner, repo, p, ref, err := ParseGitHubSource(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.path, p)
			assert.Equal(t, tt.ref, ref)
		})
	}
}
