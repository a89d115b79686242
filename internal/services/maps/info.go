package maps

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

// InfoCollector implements the detail-enrichment flow: open an
// organization page, detect captcha, extract and normalize the descriptive
// fields. No persistence here, the pipeline owns that.
type InfoCollector struct {
	cfg     *common.MapsConfig
	logger  arbor.ILogger
	limiter *rate.Limiter
}

// NewInfoCollector creates a detail-enrichment collector
func NewInfoCollector(logger arbor.ILogger, cfg *common.MapsConfig) *InfoCollector {
	limit := rate.Inf
	if cfg.PageRatePerSec > 0 {
		limit = rate.Limit(cfg.PageRatePerSec)
	}
	return &InfoCollector{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Collect navigates to a discovered link and returns the enriched
// organization record keyed by the id parsed from the URL.
func (c *InfoCollector) Collect(ctx context.Context, page Page, link *models.Link) (*models.Organization, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := page.Navigate(ctx, link.URL); err != nil {
		return nil, err
	}
	sleepBetween(ctx, 1000*time.Millisecond, 1800*time.Millisecond)

	if IsCaptchaPage(ctx, page) {
		return nil, &CaptchaError{Msg: "captcha on the organization page"}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	orgID := common.OrgIDFromURL(link.URL)
	if orgID == "" {
		orgID = link.OrgID
	}

	return &models.Organization{
		OrgID:   orgID,
		Name:    common.CleanField(extractName(doc)),
		Address: common.CleanField(extractAddress(doc)),
		Website: common.CleanField(extractWebsite(doc)),
		Listing: common.StripQuery(link.URL),
		Phone:   common.CleanField(extractPhone(doc)),
		Social:  common.CleanField(extractSocial(doc)),
	}, nil
}
