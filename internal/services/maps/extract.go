package maps

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/colligo/internal/common"
)

var phoneRe = regexp.MustCompile(`\+?\d[\d\-\s\(\)]{8,}\d`)

// socialHosts mark anchors counted as social-network links
var socialHosts = []string{
	"vk.com", "t.me", "instagram.com", "facebook.com", "ok.ru", "youtube.com",
}

func nodeText(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return common.NormText(s.Text())
}

// extractName prefers the page H1, falling back to the title up to the
// service's em-dash suffix
func extractName(doc *goquery.Document) string {
	if t := nodeText(doc.Find("h1").First()); t != "" {
		return t
	}
	title := nodeText(doc.Find("title").First())
	if title == "" {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(title, "—", 2)[0])
}

// extractAddress looks for the card address block, falling back to geo
// anchors the service renders on older layouts
func extractAddress(doc *goquery.Document) string {
	sel := doc.Find("[class*='business-card-view__address'], [class*='orgpage-header-view__address']").First()
	if t := nodeText(sel); t != "" {
		return t
	}

	address := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "ymaps") && strings.Contains(href, "geo") {
			if t := nodeText(a); len(t) > 5 {
				address = t
				return false
			}
		}
		return true
	})
	return address
}

// extractWebsite finds the outbound site link: an external anchor whose
// visible label is the site affordance
func extractWebsite(doc *goquery.Document) string {
	website := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "http") || strings.Contains(href, "yandex") {
			return true
		}
		switch strings.ToLower(nodeText(a)) {
		case "сайт", "website", "web":
			website = href
			return false
		}
		return true
	})
	return website
}

// extractPhone returns the first phone-shaped number in the page text
func extractPhone(doc *goquery.Document) string {
	if m := phoneRe.FindString(doc.Text()); m != "" {
		return common.NormText(m)
	}
	return ""
}

// extractSocial returns a sorted, deduplicated summary of social-network
// links, capped to fit the stored field
func extractSocial(doc *goquery.Document) string {
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		low := strings.ToLower(href)
		for _, host := range socialHosts {
			if strings.Contains(low, host) {
				seen[href] = struct{}{}
				return
			}
		}
	})

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return common.Truncate(strings.Join(links, ", "), 1000)
}
