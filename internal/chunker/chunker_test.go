package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentence(n int) string {
	return strings.Repeat("a", n-1) + "."
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 500, 50))
	assert.Nil(t, Split("   \n\t  ", 500, 50))
}

func TestSplitDeterministic(t *testing.T) {
	text := "First sentence here. Second sentence follows! Third one?\n\nA new paragraph starts. And it continues for a while with more words."
	first := Split(text, 60, 10)
	second := Split(text, 60, 10)
	require.Equal(t, first, second)
}

func TestSplitThreeParagraphDocument(t *testing.T) {
	// Twelve 100-rune sentences in three paragraphs, ~1200 characters.
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(sentence(100))
		if i == 3 || i == 7 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	pieces := Split(text, 500, 50)
	require.Len(t, pieces, 3)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p.Text)), 500)
	}

	// Each piece after the first begins with the trailing 50 runes of its
	// predecessor.
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1].Text)
		tail := string(prev[len(prev)-50:])
		assert.True(t, strings.HasPrefix(pieces[i].Text, tail), "piece %d does not start with the overlap of piece %d", i, i-1)
	}
}

func TestSplitCoversContentLosslessly(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString(sentence(80))
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	overlap := 30
	pieces := Split(text, 300, overlap)
	require.NotEmpty(t, pieces)

	var rebuilt strings.Builder
	rebuilt.WriteString(pieces[0].Text)
	for i := 1; i < len(pieces); i++ {
		runes := []rune(pieces[i].Text)
		rebuilt.WriteString(string(runes[overlap:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitOversizedSentence(t *testing.T) {
	// A single sentence longer than maxSize is emitted whole, never truncated.
	text := strings.Repeat("b", 700) + "."
	pieces := Split(text, 500, 50)
	require.Len(t, pieces, 1)
	assert.Equal(t, text, pieces[0].Text)
}

func TestSplitOversizedSentenceAfterAccumulatedText(t *testing.T) {
	long := strings.Repeat("c", 149) + "."
	text := sentence(90) + long + sentence(30)
	pieces := Split(text, 100, 50)
	require.Len(t, pieces, 3)

	// The oversized sentence stands alone, with no overlap prepended.
	assert.Equal(t, sentence(90), pieces[0].Text)
	assert.Equal(t, long, pieces[1].Text)

	// The following piece still carries the oversized piece's tail.
	prev := []rune(pieces[1].Text)
	tail := string(prev[len(prev)-50:])
	assert.True(t, strings.HasPrefix(pieces[2].Text, tail))
	assert.True(t, strings.HasSuffix(pieces[2].Text, sentence(30)))
}

func TestSplitParameterGuards(t *testing.T) {
	text := sentence(40) + " " + sentence(40)
	// Degenerate overlap falls back to zero rather than looping.
	pieces := Split(text, 50, 50)
	require.NotEmpty(t, pieces)
	var total int
	for _, p := range pieces {
		total += len([]rune(p.Text))
	}
	assert.Equal(t, len([]rune(text)), total)
}

func TestSplitArticleMarkers(t *testing.T) {
	text := "Article 5\nLawfulness of processing. Personal data shall be processed lawfully, fairly and transparently.\n\nArticle 6\nConditions for consent. Consent must be freely given and informed."
	pieces := Split(text, 120, 0)
	require.NotEmpty(t, pieces)
	assert.Equal(t, "Article 5", pieces[0].ArticleRef)
	last := pieces[len(pieces)-1]
	assert.Equal(t, "Article 6", last.ArticleRef)
}

func TestSplitUnstructuredTextHasNoMarker(t *testing.T) {
	pieces := Split("Plain note about onboarding flows. Nothing legal here.", 200, 0)
	require.Len(t, pieces, 1)
	assert.Empty(t, pieces[0].ArticleRef)
}
