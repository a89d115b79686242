package maps

import (
	"context"
	"strings"
)

// captchaTitleMarkers are matched case-insensitively against the document
// title. The last entry is the localized word the service shows to its
// primary audience.
var captchaTitleMarkers = []string{"captcha", "smartcaptcha", "капча"}

// IsCaptchaPage reports whether the current page is a captcha challenge,
// by URL redirect target or by document title. Read failures are treated
// as "no captcha": the caller's next real interaction will surface them.
func IsCaptchaPage(ctx context.Context, page Page) bool {
	if loc, err := page.Location(ctx); err == nil {
		l := strings.ToLower(loc)
		if strings.Contains(l, "showcaptcha") || strings.Contains(l, "captcha.yandex") {
			return true
		}
	}
	if title, err := page.Title(ctx); err == nil {
		t := strings.ToLower(title)
		for _, marker := range captchaTitleMarkers {
			if strings.Contains(t, marker) {
				return true
			}
		}
	}
	return false
}
