package maps

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

const orgPageHTML = `<!DOCTYPE html>
<html>
<head><title>Кафе "Радуга" — Яндекс Карты</title></head>
<body>
	<h1>Кафе  "Радуга"</h1>
	<div class="orgpage-header-view__address-wrapper">
		<div class="business-card-view__address-line">г. Минск, пр. Независимости, 25</div>
	</div>
	<a href="https://raduga.example/menu">сайт</a>
	<a href="https://yandex.by/maps/org/raduga/111/reviews/">Отзывы</a>
	<a href="https://vk.com/raduga_cafe">ВКонтакте</a>
	<a href="https://t.me/raduga_cafe">Телеграм</a>
	<a href="https://vk.com/raduga_cafe">ВКонтакте (повтор)</a>
	<div class="card-phones-view__phone">+375 (29) 123-45-67</div>
</body>
</html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractName(t *testing.T) {
	doc := parseDoc(t, orgPageHTML)
	assert.Equal(t, `Кафе "Радуга"`, extractName(doc))

	// Falls back to the title up to the service suffix
	noH1 := parseDoc(t, `<html><head><title>Бар Москва — Яндекс Карты</title></head><body></body></html>`)
	assert.Equal(t, "Бар Москва", extractName(noH1))
}

func TestExtractAddress(t *testing.T) {
	doc := parseDoc(t, orgPageHTML)
	assert.Equal(t, "г. Минск, пр. Независимости, 25", extractAddress(doc))
}

func TestExtractWebsite(t *testing.T) {
	doc := parseDoc(t, orgPageHTML)
	assert.Equal(t, "https://raduga.example/menu", extractWebsite(doc))

	// Internal service links never count as the website
	internal := parseDoc(t, `<html><body><a href="https://yandex.by/web">сайт</a></body></html>`)
	assert.Equal(t, "", extractWebsite(internal))
}

func TestExtractPhone(t *testing.T) {
	doc := parseDoc(t, orgPageHTML)
	assert.Equal(t, "+375 (29) 123-45-67", extractPhone(doc))

	none := parseDoc(t, `<html><body><p>без телефона</p></body></html>`)
	assert.Equal(t, "", extractPhone(none))
}

func TestExtractSocial(t *testing.T) {
	doc := parseDoc(t, orgPageHTML)

	social := extractSocial(doc)
	assert.Equal(t, "https://t.me/raduga_cafe, https://vk.com/raduga_cafe", social)
}

func TestInfoCollector_Collect(t *testing.T) {
	c := NewInfoCollector(arbor.NewLogger(), testMapsConfig())

	page := newFakePage()
	page.htmlFn = func() string { return orgPageHTML }
	page.locationFn = func() string { return "https://yandex.by/maps/org/raduga/111/" }

	link := &models.Link{
		OrgID: "111",
		URL:   "https://yandex.by/maps/org/raduga/111/?ll=27.5%2C53.9&z=12",
	}

	org, err := c.Collect(context.Background(), page, link)
	require.NoError(t, err)

	assert.Equal(t, "111", org.OrgID)
	assert.Equal(t, "Кафе 'Радуга'", org.Name)
	assert.Equal(t, "г. Минск, пр. Независимости, 25", org.Address)
	assert.Equal(t, "https://raduga.example/menu", org.Website)
	assert.Equal(t, "https://yandex.by/maps/org/raduga/111/", org.Listing)
	assert.Equal(t, "+375 (29) 123-45-67", org.Phone)
	assert.Contains(t, org.Social, "vk.com/raduga_cafe")
}

func TestInfoCollector_Captcha(t *testing.T) {
	c := NewInfoCollector(arbor.NewLogger(), testMapsConfig())

	page := newFakePage()
	page.locationFn = func() string { return "https://yandex.by/showcaptcha?retpath=org" }

	_, err := c.Collect(context.Background(), page, &models.Link{
		OrgID: "111",
		URL:   "https://yandex.by/maps/org/raduga/111/",
	})
	assert.True(t, IsCaptchaError(err))
}
