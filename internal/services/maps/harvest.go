package maps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/colligo/internal/common"
)

// harvestHrefsJS collects the href of every result-card overlay anchor.
// a.href resolves relative URLs to absolute ones in the browser.
const harvestHrefsJS = `Array.from(document.querySelectorAll('a.link-overlay')).map(a => a.href)`

// scrollResultsJS scrolls the results panel forward by step pixels,
// falling back to the window when no panel container is present
const scrollResultsJS = `(() => {
	const sels = [
		"aside.sidebar-view .scroll__container",
		"div.sidebar-container .scroll__container",
		"div.scroll__container",
	];
	for (const s of sels) {
		const el = document.querySelector(s);
		if (el && el.offsetParent !== null) {
			el.scrollTop = el.scrollTop + %d;
			return true;
		}
	}
	window.scrollBy(0, %d);
	return true;
})()`

// normalizeOrgURL keeps only organization detail pages and strips the
// query string. Returns "" for anything else.
func normalizeOrgURL(href string) string {
	if href == "" || !strings.Contains(href, "/maps/org/") {
		return ""
	}
	return common.StripQuery(href)
}

// harvest scroll-walks the result listing, accumulating organization URLs
// into a set. It stops once the set has not grown for MaxIdlePasses
// consecutive passes, or at the MaxHarvestPasses hard cap on a page that
// never stabilizes. A captcha at any point aborts with no partial result.
func (c *LinkCollector) harvest(ctx context.Context, page Page) ([]string, error) {
	seen := make(map[string]struct{})
	idle := 0
	lastCount := 0
	scrollJS := fmt.Sprintf(scrollResultsJS, c.cfg.ScrollStepPx, c.cfg.ScrollStepPx)

	for pass := 0; pass < c.cfg.MaxHarvestPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsCaptchaPage(ctx, page) {
			return nil, &CaptchaError{Msg: "captcha while harvesting links"}
		}

		var hrefs []string
		if err := page.Eval(ctx, harvestHrefsJS, &hrefs); err != nil {
			return nil, err
		}
		for _, href := range hrefs {
			if norm := normalizeOrgURL(href); norm != "" {
				seen[norm] = struct{}{}
			}
		}

		if len(seen) == lastCount {
			idle++
		} else {
			idle = 0
			lastCount = len(seen)
		}
		if idle >= c.cfg.MaxIdlePasses {
			break
		}

		var scrolled bool
		_ = page.Eval(ctx, scrollJS, &scrolled)
		sleepBetween(ctx, 120*time.Millisecond, 250*time.Millisecond)
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}
