package lexical

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-qa-server/internal/storage"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"猫", "在", "家", "里"}, tokenize("猫在家里"))
	assert.Equal(t, []string{"iphone", "15", "发", "布"}, tokenize("iPhone 15发布!"))
	assert.Empty(t, tokenize("  ，。 "))
}

func TestTerms_IncludeBigrams(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "a b", "b c"}, terms("a b c"))
}

// Scenario B.
func TestQuery_CJKCorpus(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Fit([]string{"猫在家里", "狗在公园", "鱼在水里"}, nil))

	results := idx.Query("猫", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "猫在家里", results[0].Content)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Len(t, results, 1, "documents without a shared term score zero")

	assert.Empty(t, idx.Query("飞机", 5))
}

func TestQuery_PositiveSortedBounded(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Fit([]string{
		"苹果公司发布新款手机",
		"苹果价格上涨",
		"手机市场竞争激烈",
		"今天天气晴朗",
	}, nil))

	results := idx.Query("苹果手机", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "苹果公司发布新款手机", results[0].Content)

	for i, r := range results {
		assert.Greater(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestQuery_IdenticalTextScoresOne(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Fit([]string{"the quick brown fox", "lazy dogs sleep"}, nil))

	results := idx.Query("The quick brown fox", 1)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestFit_ReplacesPreviousState(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Fit([]string{"猫在家里"}, nil))
	require.NoError(t, idx.Fit([]string{"狗在公园", "鱼在水里"}, nil))

	assert.Equal(t, 2, idx.Len())
	assert.Empty(t, idx.Query("猫", 5))
}

func TestFit_Metadata(t *testing.T) {
	idx := New(0)
	metas := []storage.ChunkMetadata{
		{DocID: "news_0", ChunkID: "news_0_chunk_0", Category: "宠物"},
		{DocID: "news_1", ChunkID: "news_1_chunk_0", Category: "宠物"},
	}
	require.NoError(t, idx.Fit([]string{"猫在家里", "狗在公园"}, metas))

	results := idx.Query("狗", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "news_1_chunk_0", results[0].Metadata.ChunkID)

	assert.Error(t, idx.Fit([]string{"a"}, metas))
}

func TestQuery_EmptyIndex(t *testing.T) {
	idx := New(0)
	assert.Empty(t, idx.Query("猫", 5))
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Fit([]string{"猫"}, nil))
	assert.Empty(t, idx.Query("猫", 0))
}

func TestMaxFeatures(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Fit([]string{"a a a b b c", "a b d"}, nil))

	assert.Len(t, idx.vocab, 2)
	assert.Contains(t, idx.vocab, "a")
	assert.Contains(t, idx.vocab, "b")
	assert.Empty(t, idx.Query("d", 5), "terms outside the vocabulary do not match")
}

func TestQuery_RandomCorpusProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("天地人和风雨山水日月星云花草木石")

	corpus := make([]string, 50)
	for i := range corpus {
		var sb strings.Builder
		for j := 0; j < 5+rng.Intn(20); j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		corpus[i] = sb.String()
	}

	idx := New(100)
	require.NoError(t, idx.Fit(corpus, nil))

	for q := 0; q < 20; q++ {
		query := fmt.Sprintf("%c%c", alphabet[rng.Intn(len(alphabet))], alphabet[rng.Intn(len(alphabet))])
		results := idx.Query(query, 10)
		assert.LessOrEqual(t, len(results), 10)
		for i, r := range results {
			assert.Greater(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
			if i > 0 {
				assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
			}
		}
	}
}
