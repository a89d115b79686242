package common

import (
	"regexp"
	"strings"
)

var (
	orgSlugIDRe  = regexp.MustCompile(`/org/[^/]+/(\d+)/`)
	orgBareIDRe  = regexp.MustCompile(`/org/(\d+)/`)
	trailingIDRe = regexp.MustCompile(`/(\d+)/?$`)
)

// OrgIDFromURL parses the organization identifier out of a detail-page URL.
// Candidates in priority order: /org/<slug>/<digits>/, /org/<digits>/, and a
// trailing /<digits>. Returns "" when no candidate matches; callers treat an
// empty id as undiscoverable and drop the URL silently.
func OrgIDFromURL(url string) string {
	if url == "" {
		return ""
	}
	if m := orgSlugIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := orgBareIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := trailingIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// StripQuery drops the query string from a URL
func StripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
