// Package extract recovers the current (home, away) team pair from a page.
//
// Strategies are tried in priority order, from the most specific marker class
// to the separator heuristic. The first strategy that yields two candidate
// texts wins; later strategies are not consulted.
package extract

import (
	"context"
	"fmt"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/validation"
)

// Document is the DOM access an extraction strategy needs.
// Implementations return trimmed display text.
type Document interface {
	// Texts returns the text of every element matching selector, in document order.
	Texts(ctx context.Context, selector string) ([]string, error)
	// SeparatorPair finds the first leaf element matching selector whose text is
	// one of tokens and returns the text of its previous and next element siblings.
	SeparatorPair(ctx context.Context, selector string, tokens []string) (Pair, bool, error)
}

// Pair is a home/away team pair.
type Pair struct {
	Home string
	Away string
}

// Result is the outcome of one extraction.
type Result struct {
	Found    bool
	Pair     Pair
	Strategy string
}

// NotFound is the result when no strategy matched.
var NotFound = Result{}

// Strategy is one heuristic for locating the team names.
type Strategy struct {
	Name string
	Find func(ctx context.Context, doc Document) (Pair, bool, error)
}

// ByClass matches elements by selector; the first two non-blank texts are
// home and away.
func ByClass(name, selector string) Strategy {
	return byClass(name, selector, validation.NormalizeTeamName)
}

func byClass(name, selector string, clean func(string) string) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context, doc Document) (Pair, bool, error) {
			texts, err := doc.Texts(ctx, selector)
			if err != nil {
				return Pair{}, false, err
			}
			candidates := nonEmpty(texts, clean)
			if len(candidates) < 2 {
				return Pair{}, false, nil
			}
			return Pair{Home: candidates[0], Away: candidates[1]}, true, nil
		},
	}
}

// BySeparator locates a "v"/"VS" token and reads its neighbouring siblings.
func BySeparator(name, selector string, tokens []string) Strategy {
	return bySeparator(name, selector, tokens, validation.NormalizeTeamName)
}

func bySeparator(name, selector string, tokens []string, clean func(string) string) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context, doc Document) (Pair, bool, error) {
			p, ok, err := doc.SeparatorPair(ctx, selector, tokens)
			if err != nil || !ok {
				return Pair{}, false, err
			}
			p.Home, p.Away = clean(p.Home), clean(p.Away)
			if p.Home == "" || p.Away == "" {
				return Pair{}, false, nil
			}
			return p, true, nil
		},
	}
}

// Strategies returns the configured strategy list in priority order.
// Names are taken as displayed unless cfg.SanitizeNames is set.
func Strategies(cfg config.ExtractConfig) []Strategy {
	clean := validation.NormalizeTeamName
	if cfg.SanitizeNames {
		clean = validation.SanitizeTeamName
	}

	out := []Strategy{byClass("primary", cfg.PrimarySelector, clean)}
	if cfg.AlternateSelector != "" {
		out = append(out, byClass("alternate", cfg.AlternateSelector, clean))
	}
	if cfg.SeparatorSelector != "" && len(cfg.SeparatorTokens) > 0 {
		out = append(out, bySeparator("separator", cfg.SeparatorSelector, cfg.SeparatorTokens, clean))
	}
	return out
}

// Extractor applies strategies in order.
type Extractor struct {
	strategies []Strategy
}

// New creates an extractor over strategies, tried in the given order.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Names returns the strategy names in priority order.
func (e *Extractor) Names() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name
	}
	return names
}

// Extract runs the strategies against doc. A strategy error aborts the
// extraction; it usually means the document went away mid-evaluation.
func (e *Extractor) Extract(ctx context.Context, doc Document) (Result, error) {
	for _, s := range e.strategies {
		p, ok, err := s.Find(ctx, doc)
		if err != nil {
			return NotFound, fmt.Errorf("strategy %s: %w", s.Name, err)
		}
		if ok {
			return Result{Found: true, Pair: p, Strategy: s.Name}, nil
		}
	}
	return NotFound, nil
}

func nonEmpty(texts []string, clean func(string) string) []string {
	out := texts[:0:0]
	for _, t := range texts {
		if t = clean(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
