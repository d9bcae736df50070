package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/matchfeed/internal/scraper/extract"
)

// Scripts run inside the page, where the DOM lives. Text is read the way the
// page displays it: innerText with whitespace runs collapsed.
const (
	textOfJS = `const textOf = (el) => (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();`

	textsJS = `(() => {
	%s
	return Array.from(document.querySelectorAll(%s)).map(textOf);
})()`

	separatorJS = `(() => {
	%s
	const tokens = %s;
	for (const el of document.querySelectorAll(%s)) {
		if (el.children.length > 0 || !tokens.includes(textOf(el))) continue;
		const prev = el.previousElementSibling, next = el.nextElementSibling;
		if (!prev || !next) continue;
		const home = textOf(prev), away = textOf(next);
		if (home && away) return [home, away];
	}
	return [];
})()`
)

// liveDocument evaluates extraction queries in the session's page.
type liveDocument struct {
	tab context.Context
}

var _ extract.Document = liveDocument{}

func (d liveDocument) Texts(ctx context.Context, selector string) ([]string, error) {
	script, err := textsScript(selector)
	if err != nil {
		return nil, err
	}
	var texts []string
	if err := d.eval(ctx, script, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func (d liveDocument) SeparatorPair(ctx context.Context, selector string, tokens []string) (extract.Pair, bool, error) {
	script, err := separatorScript(selector, tokens)
	if err != nil {
		return extract.Pair{}, false, err
	}
	var pair []string
	if err := d.eval(ctx, script, &pair); err != nil {
		return extract.Pair{}, false, err
	}
	if len(pair) != 2 {
		return extract.Pair{}, false, nil
	}
	return extract.Pair{Home: pair[0], Away: pair[1]}, true, nil
}

// eval runs script on the tab, abandoning it when ctx is cancelled.
// Cancelling a context derived from an allocated tab does not close the tab.
func (d liveDocument) eval(ctx context.Context, script string, res interface{}) error {
	rctx, cancel := context.WithCancel(d.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(rctx, chromedp.Evaluate(script, res))
}

func textsScript(selector string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	return fmt.Sprintf(textsJS, textOfJS, sel), nil
}

func separatorScript(selector string, tokens []string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	toks, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("encode tokens: %w", err)
	}
	return fmt.Sprintf(separatorJS, textOfJS, toks, sel), nil
}
