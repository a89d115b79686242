package maps

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

// LinkCollector implements the link-discovery flow: resolve the city
// anchor, build the target URL, optionally pan the map, harvest organization
// links and filter excludes. It holds no browser of its own, the pipeline
// passes a live Page per invocation.
type LinkCollector struct {
	cfg     *common.MapsConfig
	logger  arbor.ILogger
	limiter *rate.Limiter

	mu       sync.RWMutex
	excludes []string
}

// NewLinkCollector creates a link collector. excludes are operator-supplied
// substrings, matched case-insensitively against harvested URLs.
func NewLinkCollector(logger arbor.ILogger, cfg *common.MapsConfig, excludes []string) *LinkCollector {
	limit := rate.Inf
	if cfg.PageRatePerSec > 0 {
		limit = rate.Limit(cfg.PageRatePerSec)
	}
	c := &LinkCollector{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
	c.SetExcludes(excludes)
	return c
}

// SetExcludes replaces the exclude list, normalized to lowercase. Called
// when the operator workbook is re-imported while the pipeline runs.
func (c *LinkCollector) SetExcludes(excludes []string) {
	lowered := make([]string, 0, len(excludes))
	for _, ex := range excludes {
		if ex = strings.ToLower(strings.TrimSpace(ex)); ex != "" {
			lowered = append(lowered, ex)
		}
	}
	c.mu.Lock()
	c.excludes = lowered
	c.mu.Unlock()
}

// navigate paces page loads through the rate limiter before loading url
func (c *LinkCollector) navigate(ctx context.Context, page Page, url string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return page.Navigate(ctx, url)
}

// sleepBetween pauses for a random duration in [min, max), honoring ctx.
// Randomized pauses avoid a fixed automation fingerprint.
func sleepBetween(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Collect runs the full discovery flow for one claimed task and returns
// the filtered organization URLs. Persistence is the caller's job.
func (c *LinkCollector) Collect(ctx context.Context, page Page, task *models.Task) ([]string, error) {
	anchor, err := c.ResolveCityAnchor(ctx, page, task.City, task.DomainPref)
	if err != nil {
		return nil, err
	}

	var targetURL string
	switch task.Mode.Kind {
	case models.TargetCategory:
		targetURL, err = anchor.BuildCategoryURL(task.CategoryPath)
		if err != nil {
			return nil, err
		}
	default:
		targetURL = anchor.BuildSearchURL(task.Query)
	}

	if err := c.navigate(ctx, page, targetURL); err != nil {
		return nil, err
	}
	sleepBetween(ctx, 2200*time.Millisecond, 3400*time.Millisecond)

	if title, err := page.Title(ctx); err == nil && strings.Contains(strings.ToLower(title), "404") {
		return nil, &PageStructureError{Msg: fmt.Sprintf("got a 404 page for %s", targetURL)}
	}
	if IsCaptchaPage(ctx, page) {
		return nil, &CaptchaError{Msg: "captcha after opening the result listing"}
	}

	if task.Mode.PanEnabled {
		// Panning is best-effort coverage enrichment, failures are swallowed
		if err := c.panMap(ctx, page); err != nil {
			c.logger.Debug().Err(err).Int64("task_id", task.ID).Msg("Map panning failed, continuing")
		}
	}

	urls, err := c.harvest(ctx, page)
	if err != nil {
		return nil, err
	}

	filtered := c.filterExcludes(urls)
	c.logger.Info().
		Int64("task_id", task.ID).
		Str("mode", task.Mode.String()).
		Int("harvested", len(urls)).
		Int("kept", len(filtered)).
		Msg("Task links collected")

	return filtered, nil
}

// filterExcludes drops URLs containing any exclude substring,
// case-insensitively
func (c *LinkCollector) filterExcludes(urls []string) []string {
	c.mu.RLock()
	excludes := c.excludes
	c.mu.RUnlock()

	if len(excludes) == 0 {
		return urls
	}
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		low := strings.ToLower(u)
		excluded := false
		for _, ex := range excludes {
			if strings.Contains(low, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, u)
		}
	}
	return kept
}
