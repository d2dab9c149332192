// Package report renders analyses as Markdown.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/types"
)

// TopRankings is how many rankings the report lists per category.
const TopRankings = 10

// MarkdownWriter writes analyses as a Markdown document.
type MarkdownWriter struct {
	output io.Writer
	now    func() time.Time
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output, now: time.Now}
}

// Write renders one section per analysis.
func (w *MarkdownWriter) Write(analyses ...*types.Analysis) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Arena Watch Report")
	md.PlainText("")
	md.PlainTextf("Generated %s", w.now().UTC().Format("2006-01-02 15:04 MST"))
	md.PlainText("")

	for _, a := range analyses {
		if a == nil {
			continue
		}
		w.writeCategory(md, a)
	}

	md.HorizontalRule()
	return md.Build()
}

func (w *MarkdownWriter) writeCategory(md *markdown.Markdown, a *types.Analysis) {
	md.H2(identity.DisplayName(a.Category))
	md.PlainText("")

	if a.LiveAsOf != nil {
		md.PlainTextf("Live leaderboard as of %s.", a.LiveAsOf.UTC().Format("2006-01-02 15:04 MST"))
		md.PlainText("")
	}
	if a.Degraded {
		md.Warningf("Reduced confidence: %s", joinOr(a.Warnings, "a baseline snapshot is missing"))
		md.PlainText("")
	}
	if m := a.Baselines.Month; m.Substituted {
		md.Note(fmt.Sprintf("New stars were compared against the %s snapshot (%.1f days old) instead of a 30-day baseline.",
			m.Used, m.AgeDays()))
		md.PlainText("")
	}

	md.H3("Fast Risers")
	md.PlainText("")
	if len(a.FastRisers) == 0 {
		md.PlainText("No fast risers.")
	} else {
		rows := make([][]string, len(a.FastRisers))
		for i, d := range a.FastRisers {
			rows[i] = []string{d.DisplayName, strconv.Itoa(d.CurrentRank), previous(d.PreviousRank), gained(d.Delta), price(d.PriceInput, d.PriceOutput)}
		}
		md.Table(markdown.TableSet{Header: []string{"Model", "Rank", "Previous", "Change", "Price in/out ($/M)"}, Rows: rows})
	}
	md.PlainText("")

	md.H3("New Stars")
	md.PlainText("")
	if len(a.NewStars) == 0 {
		md.PlainText("No new stars.")
	} else {
		rows := make([][]string, len(a.NewStars))
		for i, d := range a.NewStars {
			rows[i] = []string{d.DisplayName, strconv.Itoa(d.CurrentRank), previous(d.PreviousRank)}
		}
		md.Table(markdown.TableSet{Header: []string{"Model", "Rank", "Previous"}, Rows: rows})
	}
	md.PlainText("")

	md.H3(fmt.Sprintf("Top %d", TopRankings))
	md.PlainText("")
	top := a.Top(TopRankings)
	if len(top) == 0 {
		md.PlainText("No rankings available.")
	} else {
		rows := make([][]string, len(top))
		for i, r := range top {
			rows[i] = []string{strconv.Itoa(r.Rank), r.DisplayName, strconv.FormatFloat(r.Score, 'f', -1, 64), gained(r.Delta), price(r.PriceInput, r.PriceOutput), usage(r.UsageRank)}
		}
		md.Table(markdown.TableSet{Header: []string{"Rank", "Model", "Score", "7d", "Price in/out ($/M)", "Usage rank"}, Rows: rows})
	}
	md.PlainText("")
}

func previous(rank *int) string {
	if rank == nil {
		return "new"
	}
	return strconv.Itoa(*rank)
}

// gained prints positions gained; delta is current minus previous.
func gained(delta *int) string {
	switch {
	case delta == nil:
		return "-"
	case *delta < 0:
		return "+" + strconv.Itoa(-*delta)
	case *delta > 0:
		return "-" + strconv.Itoa(*delta)
	}
	return "0"
}

func price(in, out *float64) string {
	if in == nil && out == nil {
		return "-"
	}
	return money(in) + " / " + money(out)
}

func money(v *float64) string {
	if v == nil {
		return "?"
	}
	return "$" + strconv.FormatFloat(*v, 'f', 2, 64)
}

func usage(rank *int) string {
	if rank == nil {
		return "-"
	}
	return "#" + strconv.Itoa(*rank)
}

func joinOr(ss []string, fallback string) string {
	if len(ss) == 0 {
		return fallback
	}
	return strings.Join(ss, "; ")
}
