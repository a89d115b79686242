package maps

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrgURL(t *testing.T) {
	assert.Equal(t, "https://yandex.by/maps/org/cafe/111/",
		normalizeOrgURL("https://yandex.by/maps/org/cafe/111/?ll=27.5%2C53.9&z=12"))
	assert.Equal(t, "", normalizeOrgURL("https://yandex.by/maps/157/minsk/"))
	assert.Equal(t, "", normalizeOrgURL(""))
}

func TestHarvest_IdleTermination(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.hrefsFn = func(pass int) []string {
		return []string{
			"https://yandex.by/maps/org/cafe/111/?source=serp",
			"https://yandex.by/maps/org/bar/222/",
			"https://yandex.by/maps/157/minsk/", // not an organization page
		}
	}

	urls, err := c.harvest(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://yandex.by/maps/org/bar/222/",
		"https://yandex.by/maps/org/cafe/111/",
	}, urls)

	// One growth pass plus MaxIdlePasses idle passes
	assert.Equal(t, 1+c.cfg.MaxIdlePasses, page.hrefPasses)
}

func TestHarvest_GrowthResetsIdleCounter(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.hrefsFn = func(pass int) []string {
		urls := []string{"https://yandex.by/maps/org/cafe/111/"}
		if pass >= 3 {
			urls = append(urls, "https://yandex.by/maps/org/bar/222/")
		}
		return urls
	}

	urls, err := c.harvest(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestHarvest_HardCapOnUnstablePage(t *testing.T) {
	c := testCollector()
	c.cfg.MaxHarvestPasses = 3

	page := newFakePage()
	page.hrefsFn = func(pass int) []string {
		// The page grows forever, the hard cap has to end the walk
		return []string{fmt.Sprintf("https://yandex.by/maps/org/cafe/%d/", 100+pass)}
	}

	urls, err := c.harvest(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Equal(t, 3, page.hrefPasses)
}

func TestHarvest_CaptchaAbortsWithoutPartialResult(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.hrefsFn = func(pass int) []string {
		return []string{fmt.Sprintf("https://yandex.by/maps/org/cafe/%d/", 100+pass)}
	}
	page.titleFn = func() string {
		if page.hrefPasses >= 2 {
			return "Вы не робот? SmartCaptcha"
		}
		return "Яндекс Карты"
	}

	urls, err := c.harvest(context.Background(), page)
	require.Error(t, err)
	assert.True(t, IsCaptchaError(err))
	assert.Nil(t, urls)
}

func TestHarvest_ContextCancellation(t *testing.T) {
	c := testCollector()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls, err := c.harvest(ctx, newFakePage())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, urls)
}
