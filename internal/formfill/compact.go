package formfill

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/spigell/job-autopilot/internal/utils"
)

var (
	noise = strings.Join([]string{"script", "style", "noscript", "svg", "iframe", "link", "meta"}, ", ")

	keptAttrs = map[string]struct{}{
		"id": {}, "name": {}, "type": {}, "for": {}, "value": {}, "placeholder": {},
		"required": {}, "aria-label": {}, "aria-required": {}, "multiple": {}, "accept": {},
		"checked": {}, "selected": {},
	}

	spaces = regexp.MustCompile(`\s+`)
)

// Compact strips scripts, styles and presentation attributes from markup and
// truncates the result.
func Compact(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find(noise).Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			attrs := n.Attr[:0]
			for _, a := range n.Attr {
				if _, ok := keptAttrs[a.Key]; ok {
					attrs = append(attrs, a)
				}
			}
			n.Attr = attrs
		}
	})
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	root := doc.Find("form")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Find("input, textarea, select").Length() == 0 {
		return ""
	}

	var b strings.Builder
	root.Each(func(_ int, s *goquery.Selection) {
		out, err := goquery.OuterHtml(s)
		if err == nil {
			b.WriteString(out)
		}
	})

	return utils.Truncate(strings.TrimSpace(spaces.ReplaceAllString(b.String(), " ")), maxFormLength)
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
