package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned by WaitFor when no element matches before the timeout.
var ErrElementNotFound = errors.New("element not found")

// SettleError is returned by Click when the click went through but waiting for the page to
// reflect it failed. It is a rendering failure, not a failed interaction.
type SettleError struct {
	Err error
}

func (e *SettleError) Error() string { return "wait for page to settle: " + e.Err.Error() }

func (e *SettleError) Unwrap() error { return e.Err }

// Page is the rendering and interaction surface the review extractor works against.
// Implementations block until the DOM reflects the effect of a successful Click before
// returning from it, so a following HTML call sees the new content.
type Page interface {
	// HTML returns the serialized current DOM.
	HTML(ctx context.Context) (string, error)

	// FindAll returns every element currently matching selector. No match is not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// WaitFor waits up to timeout for an element matching selector to be present.
	// It returns ErrElementNotFound when none appears.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)
}

// Element is a live handle on a DOM node.
type Element interface {
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Text(ctx context.Context) (string, error)
	// Click activates the element. Failures after the click itself are reported as *SettleError.
	Click(ctx context.Context) error
}

// Session is a Page opened on a URL by a browser, with the extras needed for raw dumps.
type Session interface {
	Page
	URL() string
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
