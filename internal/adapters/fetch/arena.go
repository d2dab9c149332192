package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/okian/arenawatch/internal/domain/model"
)

// SourceArena labels snapshots scraped from the live leaderboard.
const SourceArena = "arena"

var leadingNumber = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)`)

// categoryPaths maps categories to leaderboard pages.
var categoryPaths = map[model.Category]string{
	model.CategoryGeneral: "/leaderboard/text",
	model.CategoryCoding:  "/leaderboard/code",
}

// CategoryPath returns the leaderboard page path of category.
func CategoryPath(category model.Category) (string, error) {
	p, ok := categoryPaths[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, category)
	}
	return p, nil
}

// Arena scrapes the live leaderboard.
type Arena struct {
	client  *Client
	baseURL string
}

// NewArena creates an Arena scraper rooted at baseURL.
func NewArena(client *Client, baseURL string) *Arena {
	return &Arena{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// PageURL is the absolute leaderboard URL of category.
func (a *Arena) PageURL(category model.Category) (string, error) {
	p, err := CategoryPath(category)
	if err != nil {
		return "", err
	}
	return a.baseURL + p, nil
}

// FetchCategory downloads and parses the current leaderboard of category.
func (a *Arena) FetchCategory(ctx context.Context, category model.Category) (*model.Snapshot, error) {
	url, err := a.PageURL(category)
	if err != nil {
		return nil, err
	}
	body, err := a.client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	snap, err := ParseLeaderboard(bytes.NewReader(body), category, a.client.now())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	snap.Source = SourceArena
	return snap, nil
}

// ParseLeaderboard reads every table row of a leaderboard page. A row
// contributes a record when its first cell is an integer rank and its
// fourth cell starts with a score; the model id comes from the titled anchor
// in the third cell, or its first word. Ranks are kept as printed.
func ParseLeaderboard(r io.Reader, category model.Category, asOf time.Time) (*model.Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	snap := &model.Snapshot{Category: category, AsOf: asOf}
	for _, row := range elements(doc, "tr") {
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		rec.Category = category
		snap.Records = append(snap.Records, rec)
	}
	if len(snap.Records) == 0 {
		return nil, ErrNoRows
	}
	return snap, nil
}

func parseRow(row *html.Node) (model.ModelRecord, bool) {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, c)
		}
	}
	if len(cells) < 4 {
		return model.ModelRecord{}, false
	}

	rank, err := strconv.Atoi(text(cells[0]))
	if err != nil {
		return model.ModelRecord{}, false
	}

	id := ""
	for _, a := range elements(cells[2], "a") {
		if t := strings.TrimSpace(attr(a, "title")); t != "" {
			id = t
			break
		}
	}
	if id == "" {
		if words := strings.Fields(text(cells[2])); len(words) > 0 {
			id = words[0]
		}
	}
	if id == "" {
		return model.ModelRecord{}, false
	}

	m := leadingNumber.FindStringSubmatch(text(cells[3]))
	if m == nil {
		return model.ModelRecord{}, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return model.ModelRecord{}, false
	}

	votes := 0
	if len(cells) > 4 {
		if v, err := strconv.Atoi(strings.ReplaceAll(text(cells[4]), ",", "")); err == nil {
			votes = v
		}
	}

	return model.ModelRecord{ModelID: id, Rank: rank, Score: score, Votes: votes}, true
}

// elements returns every descendant element of n named tag, in document order.
func elements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

// text joins the trimmed text nodes under n with single spaces.
func text(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
