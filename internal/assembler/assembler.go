// Package assembler builds the evidence context handed to the answer
// generator from ranked retrieval results.
package assembler

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docqd/internal/vectorstore"
)

// ErrInvalidBudget indicates a non-positive context budget.
var ErrInvalidBudget = errors.New("context budget must be positive")

// Source identifies where a piece of evidence came from.
type Source struct {
	Document string  `json:"document"`
	Page     int     `json:"page"`
	Score    float32 `json:"score"`
}

// Context is an assembled evidence block plus the provenance of every
// entry that made it in, in rank order.
type Context struct {
	Text    string
	Sources []Source
}

// Assembler formats ranked results into a bounded evidence block.
type Assembler struct {
	budget int
}

// New creates an Assembler with a character budget for the assembled
// context text.
func New(budget int) (*Assembler, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, budget)
	}
	return &Assembler{budget: budget}, nil
}

// Assemble builds the evidence block from results in rank order. Each
// entry is headed by its provenance so the generator can cite it:
//
//	From report.pdf, Page 3:
//	<chunk text>
//
// Entries that would push the block past the budget are dropped whole,
// lowest ranked first. If even the top entry alone exceeds the budget,
// its text is truncated instead so the caller always gets something to
// work with.
func (a *Assembler) Assemble(results []vectorstore.Result) Context {
	var (
		b       strings.Builder
		sources []Source
	)

	for i, res := range results {
		entry := formatEntry(res)
		separator := ""
		if b.Len() > 0 {
			separator = "\n"
		}

		if b.Len()+len(separator)+len(entry) > a.budget {
			if i == 0 {
				sources = append(sources, Source{Document: res.Document, Page: res.Page, Score: res.Score})
				b.WriteString(truncateEntry(res, a.budget))
			}
			break
		}

		sources = append(sources, Source{Document: res.Document, Page: res.Page, Score: res.Score})
		b.WriteString(separator)
		b.WriteString(entry)
	}

	return Context{Text: b.String(), Sources: sources}
}

func formatEntry(res vectorstore.Result) string {
	return fmt.Sprintf("From %s, Page %d:\n%s\n", res.Document, res.Page, res.Text)
}

// truncateEntry fits a single entry into the budget by cutting its
// text, keeping the provenance header intact when possible.
func truncateEntry(res vectorstore.Result, budget int) string {
	header := fmt.Sprintf("From %s, Page %d:\n", res.Document, res.Page)
	if len(header) >= budget {
		return truncateToRune(header, budget)
	}
	remaining := budget - len(header) - 1
	text := res.Text
	if remaining < 0 {
		remaining = 0
	}
	if len(text) > remaining {
		text = truncateToRune(text, remaining)
	}
	return header + text + "\n"
}

// truncateToRune cuts s to at most n bytes without splitting a rune.
func truncateToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
