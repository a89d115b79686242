package maps

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

func testMapsConfig() *common.MapsConfig {
	return &common.MapsConfig{
		DomainPref:       "auto",
		DomainDefault:    "by",
		CityZoomDefault:  "11",
		SearchInputWait:  2 * time.Second,
		MaxIdlePasses:    2,
		MaxHarvestPasses: 50,
		ScrollStepPx:     900,
		PanGrid:          2,
		PanStepPx:        300,
	}
}

func testCollector(excludes ...string) *LinkCollector {
	return NewLinkCollector(arbor.NewLogger(), testMapsConfig(), excludes)
}

func TestExtractLLZ(t *testing.T) {
	ll, z := extractLLZ("https://yandex.by/maps/157/minsk/?ll=27.561481%2C53.902496&z=12")
	assert.Equal(t, "27.561481,53.902496", ll)
	assert.Equal(t, "12", z)

	ll, z = extractLLZ("https://yandex.by/maps/157/minsk/?ll=27.5%2C53.9")
	assert.Equal(t, "27.5,53.9", ll)
	assert.Equal(t, "", z)

	ll, z = extractLLZ("https://yandex.by/maps/157/minsk/")
	assert.Equal(t, "", ll)
	assert.Equal(t, "", z)
}

func TestExtractCityID(t *testing.T) {
	assert.Equal(t, "157", extractCityID("https://yandex.by/maps/157/minsk/?ll=27.5%2C53.9&z=12"))
	assert.Equal(t, "", extractCityID("https://yandex.by/maps/minsk/?ll=27.5%2C53.9"))
	assert.Equal(t, "", extractCityID("https://yandex.by/maps"))
}

func TestResolveDomain(t *testing.T) {
	c := testCollector()

	assert.Equal(t, "by", c.resolveDomain("auto"))
	assert.Equal(t, "by", c.resolveDomain(""))
	assert.Equal(t, "ru", c.resolveDomain("ru"))
	assert.Equal(t, "kz", c.resolveDomain(" KZ "))
}

func TestBuildSearchURL(t *testing.T) {
	anchor := &CityAnchor{Domain: "by", LL: "27.5,53.9", Zoom: "12", CityID: "157"}

	u, err := url.Parse(anchor.BuildSearchURL("кофейня"))
	require.NoError(t, err)
	assert.Equal(t, "yandex.by", u.Host)
	assert.Equal(t, "/maps/157/", u.Path)
	assert.Equal(t, "кофейня", u.Query().Get("text"))
	assert.Equal(t, "27.5,53.9", u.Query().Get("ll"))
	assert.Equal(t, "12", u.Query().Get("z"))

	// Without a city id the path stays at the maps root
	anchor.CityID = ""
	u, err = url.Parse(anchor.BuildSearchURL("кофейня"))
	require.NoError(t, err)
	assert.Equal(t, "/maps/", u.Path)
}

func TestBuildCategoryURL(t *testing.T) {
	anchor := &CityAnchor{Domain: "by", LL: "27.5,53.9", Zoom: "12", CityID: "157"}

	raw, err := anchor.BuildCategoryURL("/184106384/")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/maps/157/category/184106384/", u.Path)
	assert.Equal(t, "27.5,53.9", u.Query().Get("ll"))

	_, err = anchor.BuildCategoryURL("  ")
	assert.True(t, IsStructureError(err))
}

func TestResolveCityAnchor(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.locationFn = func() string {
		if len(page.submitted) > 0 {
			return "https://yandex.by/maps/157/minsk/?ll=27.561481%2C53.902496&z=12"
		}
		return "https://yandex.by/maps"
	}

	anchor, err := c.ResolveCityAnchor(context.Background(), page, "Минск", "auto")
	require.NoError(t, err)

	assert.Equal(t, "by", anchor.Domain)
	assert.Equal(t, "27.561481,53.902496", anchor.LL)
	assert.Equal(t, "12", anchor.Zoom)
	assert.Equal(t, "157", anchor.CityID)

	require.Len(t, page.navigated, 1)
	assert.Equal(t, "https://yandex.by/maps", page.navigated[0])
	require.Len(t, page.submitted, 1)
	assert.Equal(t, "Минск", page.typed[page.submitted[0]])
}

func TestResolveCityAnchor_ZoomDefault(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.locationFn = func() string {
		if len(page.submitted) > 0 {
			return "https://yandex.by/maps/157/minsk/?ll=27.5%2C53.9"
		}
		return "https://yandex.by/maps"
	}

	anchor, err := c.ResolveCityAnchor(context.Background(), page, "Минск", "auto")
	require.NoError(t, err)
	assert.Equal(t, "11", anchor.Zoom)
}

func TestResolveCityAnchor_EmptyCity(t *testing.T) {
	c := testCollector()

	_, err := c.ResolveCityAnchor(context.Background(), newFakePage(), "  ", "auto")
	assert.True(t, IsStructureError(err))
}

func TestResolveCityAnchor_MissingLL(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.locationFn = func() string { return "https://yandex.by/maps" }

	_, err := c.ResolveCityAnchor(context.Background(), page, "Минск", "auto")
	require.Error(t, err)
	assert.True(t, IsStructureError(err))
	assert.True(t, strings.Contains(err.Error(), "no ll parameter"))
}

func TestResolveCityAnchor_CaptchaOnRoot(t *testing.T) {
	c := testCollector()
	page := newFakePage()
	page.locationFn = func() string { return "https://yandex.by/showcaptcha?retpath=maps" }

	_, err := c.ResolveCityAnchor(context.Background(), page, "Минск", "auto")
	assert.True(t, IsCaptchaError(err))
}
