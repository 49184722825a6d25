package parser

import (
	"testing"

	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
	<h1 class="title">   Roadster
		Women   Dress </h1>
	<span class="price"></span>
	<span class="price-alt">Rs. 1,299</span>
	<div class="img" style="background-image: url(&quot;https://assets.myntassets.com/a.jpg?w=200&quot;);"></div>
	<div class="img" style="background-image: url('https://assets.myntassets.com/b.jpg');"></div>
	<a class="pdp" href="/dresses/roadster/123/buy">x</a>
	<ul>
		<li class="review"> Great fit </li>
		<li class="review"></li>
		<li class="review">Colour faded</li>
	</ul>
</body></html>`

func TestText(t *testing.T) {
	doc, err := NewDocument(fixture)
	require.NoError(t, err)

	tests := []struct {
		name     string
		field    Field
		expected string
		hasError bool
	}{
		{
			name:     "collapses whitespace",
			field:    Field{Name: "name", Selectors: []Selector{CSS("h1.title")}},
			expected: "Roadster Women Dress",
		},
		{
			name:     "falls back when first selector is empty",
			field:    Field{Name: "price", Selectors: []Selector{CSS(".price"), CSS(".price-alt")}},
			expected: "Rs. 1,299",
		},
		{
			name:     "attribute lookup",
			field:    Field{Name: "url", Selectors: []Selector{Attr("a.pdp", "href")}},
			expected: "/dresses/roadster/123/buy",
		},
		{
			name:     "background image",
			field:    Field{Name: "image", Selectors: []Selector{BackgroundImage(".img")}},
			expected: "https://assets.myntassets.com/a.jpg?w=200",
		},
		{
			name:     "missing element",
			field:    Field{Name: "rating", Selectors: []Selector{CSS(".rating"), CSS(".stars")}},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := Text(doc, tt.field)
			if tt.hasError {
				var notFound *models.ElementNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, tt.field.Name, notFound.Field)
				assert.Len(t, notFound.Selectors, len(tt.field.Selectors))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestAll(t *testing.T) {
	doc, err := NewDocument(fixture)
	require.NoError(t, err)

	reviews, err := All(doc, Field{Name: "reviews", Selectors: []Selector{CSS(".missing"), CSS("li.review")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Great fit", "Colour faded"}, reviews)

	images, err := All(doc, Field{Name: "images", Selectors: []Selector{BackgroundImage(".img")}})
	require.NoError(t, err)
	assert.Len(t, images, 2)

	_, err = All(doc, Field{Name: "sizes", Selectors: []Selector{CSS(".size")}})
	assert.Error(t, err)
}

func TestBackgroundImageURL(t *testing.T) {
	tests := map[string]string{
		`background-image: url("https://x/a.jpg");`: "https://x/a.jpg",
		`background-image:url(https://x/b.jpg)`:     "https://x/b.jpg",
		`background-image: url( 'https://x/c.jpg' )`: "https://x/c.jpg",
		`color: red`: "",
	}
	for style, expected := range tests {
		assert.Equal(t, expected, BackgroundImageURL(style), style)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.myntra.com/red-dress?rawQuery=red%20dress"

	assert.Equal(t, "https://www.myntra.com/dresses/x/123/buy", AbsoluteURL(base, "/dresses/x/123/buy"))
	assert.Equal(t, "https://www.myntra.com/dresses/x/123/buy", AbsoluteURL(base, "dresses/x/123/buy"))
	assert.Equal(t, "https://cdn.example.com/a", AbsoluteURL(base, "https://cdn.example.com/a"))
	assert.Empty(t, AbsoluteURL(base, ""))
	assert.Empty(t, AbsoluteURL(base, "javascript:void(0)"))
	assert.Empty(t, AbsoluteURL(base, "#top"))
}

func TestStripQueryAndDedupe(t *testing.T) {
	assert.Equal(t, "https://x/a.jpg", StripQuery("https://x/a.jpg?w=1&h=2"))
	assert.Equal(t, "https://x/a.jpg", StripQuery("https://x/a.jpg#frag"))
	assert.Equal(t, "https://x/a.jpg", StripQuery("https://x/a.jpg"))

	assert.Equal(t, []string{"a", "b", "c"}, Dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, Dedupe(nil))
}
