package maps

import (
	"context"
	"fmt"
	"strings"
)

// fakePage is a scripted Page for driving the collectors without a
// browser. Unset hooks fall back to benign defaults.
type fakePage struct {
	navigated []string
	typed     map[string]string
	submitted []string
	drags     int

	locationFn func() string
	titleFn    func() string
	htmlFn     func() string
	hrefsFn    func(pass int) []string
	rectFn     func() []float64

	hrefPasses int
}

func newFakePage() *fakePage {
	return &fakePage{typed: make(map[string]string)}
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakePage) Location(ctx context.Context) (string, error) {
	if f.locationFn != nil {
		return f.locationFn(), nil
	}
	if len(f.navigated) > 0 {
		return f.navigated[len(f.navigated)-1], nil
	}
	return "about:blank", nil
}

func (f *fakePage) Title(ctx context.Context) (string, error) {
	if f.titleFn != nil {
		return f.titleFn(), nil
	}
	return "Яндекс Карты", nil
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	if f.htmlFn != nil {
		return f.htmlFn(), nil
	}
	return "<html></html>", nil
}

func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *fakePage) Eval(ctx context.Context, expr string, out interface{}) error {
	switch {
	case strings.Contains(expr, "link-overlay"):
		f.hrefPasses++
		var hrefs []string
		if f.hrefsFn != nil {
			hrefs = f.hrefsFn(f.hrefPasses)
		}
		if p, ok := out.(*[]string); ok {
			*p = hrefs
		}
	case strings.Contains(expr, "getBoundingClientRect"):
		var rect []float64
		if f.rectFn != nil {
			rect = f.rectFn()
		}
		if p, ok := out.(*[]float64); ok {
			*p = rect
		}
	case strings.Contains(expr, "offsetParent"):
		if p, ok := out.(*bool); ok {
			*p = true
		}
	case strings.Contains(expr, "scroll"):
		if p, ok := out.(*bool); ok {
			*p = true
		}
	default:
		return fmt.Errorf("fake page: unscripted expression %q", expr)
	}
	return nil
}

func (f *fakePage) Type(ctx context.Context, sel, text string) error {
	f.typed[sel] = text
	return nil
}

func (f *fakePage) PressEnter(ctx context.Context, sel string) error {
	f.submitted = append(f.submitted, sel)
	return nil
}

func (f *fakePage) Drag(ctx context.Context, fromX, fromY, toX, toY float64) error {
	f.drags++
	return nil
}
