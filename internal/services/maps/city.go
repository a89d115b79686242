package maps

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// searchInputSelectors are polled in order until one is visible. The
// service has shipped several generations of its search form, so old and
// new class names are both tried.
var searchInputSelectors = []string{
	"input.input__control",
	"input.search-form-view__input",
	"form.search-form-view input[type='text']",
	"input[type='search']",
	"input[placeholder*='Поиск']",
	"input[aria-label*='Поиск']",
}

// CityAnchor is the geographic reference resolved from a city search:
// service domain, map center, zoom and an optional numeric city path
// segment the service sometimes injects.
type CityAnchor struct {
	Domain string
	LL     string
	Zoom   string
	CityID string
}

// visibleSelectorJS returns a JS expression that reports whether sel
// matches a rendered element
func visibleSelectorJS(sel string) string {
	return fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return !!(el && el.offsetParent !== null); })()`,
		sel)
}

// findSearchInput polls the selector candidates until one is visible or
// the wait budget runs out. A captcha appearing during the poll aborts
// immediately.
func (c *LinkCollector) findSearchInput(ctx context.Context, page Page) (string, error) {
	deadline := time.Now().Add(c.cfg.SearchInputWait)
	for time.Now().Before(deadline) {
		if IsCaptchaPage(ctx, page) {
			return "", &CaptchaError{Msg: "captcha while locating the city search input"}
		}
		for _, sel := range searchInputSelectors {
			var visible bool
			if err := page.Eval(ctx, visibleSelectorJS(sel), &visible); err == nil && visible {
				return sel, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	loc, _ := page.Location(ctx)
	title, _ := page.Title(ctx)
	return "", &PageStructureError{Msg: fmt.Sprintf(
		"search input not found within %s, url=%s title=%s", c.cfg.SearchInputWait, loc, title)}
}

// extractLLZ pulls the ll and z query parameters out of a URL
func extractLLZ(rawURL string) (ll, z string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	q := u.Query()
	return strings.TrimSpace(q.Get("ll")), strings.TrimSpace(q.Get("z"))
}

// extractCityID returns the numeric path segment directly after /maps/,
// empty when the path carries none
func extractCityID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if p == "maps" && i+1 < len(parts) && isDigits(parts[i+1]) {
			return parts[i+1]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// resolveDomain maps a task's domain preference to a concrete domain
// suffix, deferring "auto" and empty to the configured default
func (c *LinkCollector) resolveDomain(pref string) string {
	d := strings.ToLower(strings.TrimSpace(pref))
	if d == "" || d == "auto" {
		d = strings.ToLower(strings.TrimSpace(c.cfg.DomainDefault))
	}
	if d == "" {
		d = "by"
	}
	return d
}

// ResolveCityAnchor navigates to the map root, searches for the city and
// reads back the geographic center from the resulting URL. Missing center
// parameters after submission are a structural failure, checked separately
// from the captcha checks that bracket the submission.
func (c *LinkCollector) ResolveCityAnchor(ctx context.Context, page Page, city, domainPref string) (*CityAnchor, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, &PageStructureError{Msg: "task has an empty city name"}
	}

	domain := c.resolveDomain(domainPref)
	if err := c.navigate(ctx, page, fmt.Sprintf("https://yandex.%s/maps", domain)); err != nil {
		return nil, err
	}

	if IsCaptchaPage(ctx, page) {
		return nil, &CaptchaError{Msg: "captcha on opening the map root"}
	}

	sel, err := c.findSearchInput(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := page.Type(ctx, sel, city); err != nil {
		return nil, &PageStructureError{Msg: fmt.Sprintf("failed to type city %q: %v", city, err)}
	}
	if err := page.PressEnter(ctx, sel); err != nil {
		return nil, &PageStructureError{Msg: fmt.Sprintf("failed to submit city %q: %v", city, err)}
	}

	sleepBetween(ctx, 2200*time.Millisecond, 3400*time.Millisecond)

	if IsCaptchaPage(ctx, page) {
		return nil, &CaptchaError{Msg: "captcha after the city search"}
	}

	loc, err := page.Location(ctx)
	if err != nil {
		return nil, err
	}

	ll, z := extractLLZ(loc)
	if ll == "" {
		return nil, &PageStructureError{Msg: fmt.Sprintf("no ll parameter in the city URL: %s", loc)}
	}
	if z == "" {
		z = c.cfg.CityZoomDefault
	}

	return &CityAnchor{
		Domain: domain,
		LL:     ll,
		Zoom:   z,
		CityID: extractCityID(loc),
	}, nil
}

// basePath renders the /maps prefix, including the numeric city segment
// when the anchor carries one
func (a *CityAnchor) basePath() string {
	if a.CityID != "" {
		return fmt.Sprintf("https://yandex.%s/maps/%s", a.Domain, a.CityID)
	}
	return fmt.Sprintf("https://yandex.%s/maps", a.Domain)
}

// BuildSearchURL constructs a free-text search URL anchored at the city
func (a *CityAnchor) BuildSearchURL(query string) string {
	q := url.Values{}
	q.Set("text", strings.TrimSpace(query))
	q.Set("ll", a.LL)
	q.Set("z", a.Zoom)
	return a.basePath() + "/?" + q.Encode()
}

// BuildCategoryURL constructs a category listing URL anchored at the city.
// An empty category path is a structural error.
func (a *CityAnchor) BuildCategoryURL(categoryPath string) (string, error) {
	cat := strings.Trim(strings.TrimSpace(categoryPath), "/")
	if cat == "" {
		return "", &PageStructureError{Msg: "task has an empty category path"}
	}
	q := url.Values{}
	q.Set("ll", a.LL)
	q.Set("z", a.Zoom)
	return fmt.Sprintf("%s/category/%s/?%s", a.basePath(), cat, q.Encode()), nil
}
