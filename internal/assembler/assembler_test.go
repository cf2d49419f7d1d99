package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docqd/internal/vectorstore"
)

func result(doc string, page int, text string, score float32) vectorstore.Result {
	return vectorstore.Result{
		Entry: vectorstore.Entry{Document: doc, Page: page, Text: text},
		Score: score,
	}
}

func TestNew_InvalidBudget(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidBudget)

	_, err = New(-5)
	require.ErrorIs(t, err, ErrInvalidBudget)
}

func TestAssemble_FormatsEntries(t *testing.T) {
	a, err := New(1000)
	require.NoError(t, err)

	ctx := a.Assemble([]vectorstore.Result{
		result("report.pdf", 3, "revenue grew", 0.9),
		result("notes.pdf", 1, "meeting summary", 0.7),
	})

	assert.Equal(t,
		"From report.pdf, Page 3:\nrevenue grew\n\nFrom notes.pdf, Page 1:\nmeeting summary\n",
		ctx.Text)
	require.Len(t, ctx.Sources, 2)
	assert.Equal(t, Source{Document: "report.pdf", Page: 3, Score: 0.9}, ctx.Sources[0])
	assert.Equal(t, Source{Document: "notes.pdf", Page: 1, Score: 0.7}, ctx.Sources[1])
}

func TestAssemble_Empty(t *testing.T) {
	a, err := New(100)
	require.NoError(t, err)

	ctx := a.Assemble(nil)
	assert.Empty(t, ctx.Text)
	assert.Empty(t, ctx.Sources)
}

func TestAssemble_DropsLowestRankedFirst(t *testing.T) {
	a, err := New(60)
	require.NoError(t, err)

	ctx := a.Assemble([]vectorstore.Result{
		result("a.pdf", 1, "short answer", 0.9),
		result("b.pdf", 2, strings.Repeat("x", 200), 0.5),
	})

	// The second entry does not fit and is dropped whole; the first
	// entry is kept untouched.
	assert.Equal(t, "From a.pdf, Page 1:\nshort answer\n", ctx.Text)
	require.Len(t, ctx.Sources, 1)
	assert.Equal(t, "a.pdf", ctx.Sources[0].Document)
	assert.LessOrEqual(t, len(ctx.Text), 60)
}

func TestAssemble_TruncatesTopEntryWhenAloneOverBudget(t *testing.T) {
	a, err := New(50)
	require.NoError(t, err)

	ctx := a.Assemble([]vectorstore.Result{
		result("big.pdf", 7, strings.Repeat("y", 500), 0.8),
	})

	assert.LessOrEqual(t, len(ctx.Text), 50)
	assert.True(t, strings.HasPrefix(ctx.Text, "From big.pdf, Page 7:\n"))
	require.Len(t, ctx.Sources, 1)
	assert.Equal(t, 7, ctx.Sources[0].Page)
}

func TestAssemble_TruncatesMultibyteTextOnRuneBoundary(t *testing.T) {
	// Header "From big.pdf, Page 7:\n" is 22 bytes, so a budget of 49
	// leaves 26 bytes for three-byte runes and the cut would land
	// mid-rune without boundary handling.
	a, err := New(49)
	require.NoError(t, err)

	ctx := a.Assemble([]vectorstore.Result{
		result("big.pdf", 7, strings.Repeat("日", 200), 0.8),
	})

	assert.LessOrEqual(t, len(ctx.Text), 49)
	assert.True(t, utf8.ValidString(ctx.Text))
	assert.True(t, strings.HasPrefix(ctx.Text, "From big.pdf, Page 7:\n"))
}

func TestTruncateToRune(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{name: "fits", s: "héllo", n: 10, want: "héllo"},
		{name: "ascii cut", s: "hello", n: 3, want: "hel"},
		{name: "cut lands mid rune", s: "café", n: 4, want: "caf"},
		{name: "cut on rune boundary", s: "café", n: 5, want: "café"},
		{name: "zero", s: "abc", n: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateToRune(tt.s, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestAssemble_NeverExceedsBudget(t *testing.T) {
	a, err := New(120)
	require.NoError(t, err)

	results := []vectorstore.Result{
		result("a.pdf", 1, strings.Repeat("a", 40), 0.9),
		result("b.pdf", 2, strings.Repeat("b", 40), 0.8),
		result("c.pdf", 3, strings.Repeat("c", 40), 0.7),
	}

	ctx := a.Assemble(results)
	assert.LessOrEqual(t, len(ctx.Text), 120)
	// Sources follow rank order of the included entries.
	for i := 1; i < len(ctx.Sources); i++ {
		assert.GreaterOrEqual(t, ctx.Sources[i-1].Score, ctx.Sources[i].Score)
	}
}
