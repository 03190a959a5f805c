package hme

import "context"

// Page is the minimal surface the HME needs from a live browser page;
// internal/recorder supplies the chromedp-backed implementation so this
// package stays dependency-free and independently testable.
type Page interface {
	MoveCursor(ctx context.Context, x, y float64) error
	ScrollBy(ctx context.Context, deltaY float64) error
	ScrollY(ctx context.Context) (float64, error)
	Click(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context, x, y float64) error
	MouseUp(ctx context.Context, x, y float64) error
	ViewportSize(ctx context.Context) (width, height float64, err error)
	NavAnchors(ctx context.Context) ([]Anchor, error)
	CTAAnchors(ctx context.Context) ([]Anchor, error)
	Headings(ctx context.Context) ([]Heading, error)
	Paragraphs(ctx context.Context) ([]Paragraph, error)
	HasPasswordField(ctx context.Context) (bool, error)
	HasLoginHeading(ctx context.Context) (bool, error)
}

// Anchor is a candidate clickable/hoverable element discovered on the
// page, with just enough metadata for the safe-click classifier.
type Anchor struct {
	Text     string
	AriaLabel string
	Title    string
	Href     string
	X, Y     float64 // viewport-centre coordinates
	SameOrigin bool
}

// Paragraph is a visible <p> candidate for the highlightSentence beat.
type Paragraph struct {
	Text   string
	Words  int
	LeftX  float64
	RightX float64
	Y      float64
}
