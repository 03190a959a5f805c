// Package recorder orchestrates the browser driver (internal/browser)
// and the Human Motion Engine (internal/hme) per scene, producing one
// WebM recording whose content spans the scene duration plus a 15s
// safety buffer.
package recorder

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/hme"
)

// chromePage adapts a chromedp-backed browser.Page into the hme.Page
// interface the motion engine drives, keeping internal/hme free of any
// chromedp import.
type chromePage struct {
	ctx context.Context
}

func (p *chromePage) MoveCursor(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx, chromedp.MouseEvent("mouseMoved", x, y))
}

func (p *chromePage) ScrollBy(ctx context.Context, deltaY float64) error {
	return chromedp.Run(p.ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %f)`, deltaY), nil))
}

func (p *chromePage) ScrollY(ctx context.Context) (float64, error) {
	var y float64
	err := chromedp.Run(p.ctx, chromedp.Evaluate(`window.scrollY`, &y))
	return y, err
}

func (p *chromePage) Click(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx,
		chromedp.MouseEvent("mouseMoved", x, y),
		chromedp.MouseEvent("mousePressed", x, y),
		chromedp.MouseEvent("mouseReleased", x, y),
	)
}

func (p *chromePage) MouseDown(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx, chromedp.MouseEvent("mousePressed", x, y))
}

func (p *chromePage) MouseUp(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx, chromedp.MouseEvent("mouseReleased", x, y))
}

func (p *chromePage) ViewportSize(ctx context.Context) (float64, float64, error) {
	var dims []float64
	err := chromedp.Run(p.ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims))
	if err != nil || len(dims) != 2 {
		return 0, 0, err
	}
	return dims[0], dims[1], nil
}

const extractAnchorsScript = `
(() => {
	const origin = location.origin;
	return Array.from(document.querySelectorAll(%s)).map(a => {
		const r = a.getBoundingClientRect();
		return {
			text: (a.innerText || '').trim(),
			ariaLabel: a.getAttribute('aria-label') || '',
			title: a.getAttribute('title') || '',
			href: a.href || '',
			x: r.left + r.width/2,
			y: r.top + r.height/2,
			sameOrigin: (a.href || '').startsWith(origin),
		};
	}).filter(a => a.x > 0 && a.y > 0);
})();
`

type jsAnchor struct {
	Text       string  `json:"text"`
	AriaLabel  string  `json:"ariaLabel"`
	Title      string  `json:"title"`
	Href       string  `json:"href"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	SameOrigin bool    `json:"sameOrigin"`
}

func (p *chromePage) anchors(selector string) ([]jsAnchor, error) {
	var out []jsAnchor
	script := fmt.Sprintf(extractAnchorsScript, "'"+selector+"'")
	err := chromedp.Run(p.ctx, chromedp.Evaluate(script, &out))
	return out, err
}

func toAnchorSlice(in []jsAnchor) []hme.Anchor {
	out := make([]hme.Anchor, len(in))
	for i, a := range in {
		out[i] = hme.Anchor{Text: a.Text, AriaLabel: a.AriaLabel, Title: a.Title, Href: a.Href, X: a.X, Y: a.Y, SameOrigin: a.SameOrigin}
	}
	return out
}

func (p *chromePage) NavAnchors(ctx context.Context) ([]hme.Anchor, error) {
	got, err := p.anchors("nav a, header a")
	return toAnchorSlice(got), err
}

func (p *chromePage) CTAAnchors(ctx context.Context) ([]hme.Anchor, error) {
	got, err := p.anchors("a, button")
	return toAnchorSlice(got), err
}

const extractHeadingsScript = `
(() => Array.from(document.querySelectorAll('h1,h2,h3')).map(h => {
	const r = h.getBoundingClientRect();
	return { text: (h.innerText||'').trim(), topPx: r.top + window.scrollY };
}))();
`

type jsHeading struct {
	Text  string  `json:"text"`
	TopPx float64 `json:"topPx"`
}

func (p *chromePage) Headings(ctx context.Context) ([]hme.Heading, error) {
	var raw []jsHeading
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(extractHeadingsScript, &raw)); err != nil {
		return nil, err
	}
	out := make([]hme.Heading, len(raw))
	for i, h := range raw {
		out[i] = hme.Heading{Text: h.Text, TopPx: h.TopPx}
	}
	return out, nil
}

const extractParagraphsScript = `
(() => Array.from(document.querySelectorAll('p')).map(p => {
	const r = p.getBoundingClientRect();
	const words = (p.innerText||'').trim().split(/\s+/).filter(Boolean).length;
	return { text: (p.innerText||'').trim(), words, leftX: r.left, rightX: r.right, y: r.top + r.height/2 };
}).filter(p => p.rightX > p.leftX))();
`

type jsParagraph struct {
	Text   string  `json:"text"`
	Words  int     `json:"words"`
	LeftX  float64 `json:"leftX"`
	RightX float64 `json:"rightX"`
	Y      float64 `json:"y"`
}

func (p *chromePage) Paragraphs(ctx context.Context) ([]hme.Paragraph, error) {
	var raw []jsParagraph
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(extractParagraphsScript, &raw)); err != nil {
		return nil, err
	}
	out := make([]hme.Paragraph, len(raw))
	for i, pp := range raw {
		out[i] = hme.Paragraph{Text: pp.Text, Words: pp.Words, LeftX: pp.LeftX, RightX: pp.RightX, Y: pp.Y}
	}
	return out, nil
}

func (p *chromePage) HasPasswordField(ctx context.Context) (bool, error) {
	var has bool
	err := chromedp.Run(p.ctx, chromedp.Evaluate(`!!document.querySelector('input[type=password]')`, &has))
	return has, err
}

var loginHeadingWords = []string{"sign in", "log in", "login", "welcome back"}

func (p *chromePage) HasLoginHeading(ctx context.Context) (bool, error) {
	var text string
	err := chromedp.Run(p.ctx, chromedp.Evaluate(`
		(() => {
			const h = document.querySelector('h1,h2');
			return h ? (h.innerText || '').toLowerCase() : '';
		})();
	`, &text))
	if err != nil {
		return false, err
	}
	for _, w := range loginHeadingWords {
		if strings.Contains(text, w) {
			return true, nil
		}
	}
	return false, nil
}
