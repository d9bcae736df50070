package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StaticDocument evaluates strategies against parsed HTML.
// Used for saved pages and test fixtures.
type StaticDocument struct {
	doc *goquery.Document
}

// ParseHTML parses r into a StaticDocument.
func ParseHTML(r io.Reader) (*StaticDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &StaticDocument{doc: doc}, nil
}

func (d *StaticDocument) Texts(_ context.Context, selector string) ([]string, error) {
	var texts []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, displayText(s))
	})
	return texts, nil
}

func (d *StaticDocument) SeparatorPair(_ context.Context, selector string, tokens []string) (Pair, bool, error) {
	var (
		pair  Pair
		found bool
	)
	d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || !isToken(displayText(s), tokens) {
			return true
		}
		prev, next := s.Prev(), s.Next()
		if prev.Length() == 0 || next.Length() == 0 {
			return true
		}
		home, away := displayText(prev), displayText(next)
		if home == "" || away == "" {
			return true
		}
		pair, found = Pair{Home: home, Away: away}, true
		return false
	})
	return pair, found, nil
}

// displayText approximates innerText: whitespace runs collapse to one space.
func displayText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func isToken(text string, tokens []string) bool {
	for _, t := range tokens {
		if text == t {
			return true
		}
	}
	return false
}
