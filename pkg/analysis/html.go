package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// minExtracted is the length below which structured extraction is assumed
// to have failed and the crude strip is used instead.
const minExtracted = 100

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)

	entities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// Page is the readable form of a fetched document.
type Page struct {
	Title       string
	Description string
	Content     string
	WordCount   int
}

// ParseHTML extracts the title, description and main text of an HTML document.
// Open Graph metadata takes precedence over <title> and the description meta.
func ParseHTML(src string) Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return crudePage(src)
	}

	p := Page{
		Title:       firstNonEmpty(metaContent(doc, "meta[property='og:title']"), doc.Find("title").First().Text()),
		Description: firstNonEmpty(metaContent(doc, "meta[property='og:description']"), metaContent(doc, "meta[name='description']")),
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)

	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	p.Content = collapse(visibleText(root))

	if utf8.RuneCountInString(p.Content) < minExtracted {
		p.Content = crudeText(src)
	}
	p.WordCount = len(strings.Fields(p.Content))
	return p
}

func crudePage(src string) Page {
	content := crudeText(src)
	return Page{Content: content, WordCount: len(strings.Fields(content))}
}

// crudeText strips scripts, styles and every tag from the raw document.
func crudeText(src string) string {
	s := scriptRe.ReplaceAllString(src, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	return entities.Replace(collapse(s))
}

// visibleText joins text nodes with spaces so adjacent blocks do not run together.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				b.WriteByte(' ')
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return b.String()
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return v
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
