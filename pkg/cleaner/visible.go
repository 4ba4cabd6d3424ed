package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonRendered matches elements a browser never paints.
var nonRendered = strings.Join([]string{
	"script", "style", "noscript", "template", "head", "link", "meta",
	"[hidden]", `[aria-hidden="true"]`, `input[type="hidden"]`,
}, ", ")

var hiddenStyle = regexp.MustCompile(`(?i)(display\s*:\s*none|visibility\s*:\s*hidden)`)

// VisibleCleaner keeps only what a rendered page shows. It removes scripts,
// styles, hidden elements and comments but keeps form controls and their
// labels, which carry the page's actions.
type VisibleCleaner struct{}

// NewVisible creates a new visible-content cleaner.
func NewVisible() *VisibleCleaner {
	return &VisibleCleaner{}
}

// Clean returns the body markup with non-rendered content removed.
func (c *VisibleCleaner) Clean(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonRendered).Remove()
	doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		return hiddenStyle.MatchString(style)
	}).Remove()

	for _, n := range doc.Nodes {
		removeComments(n)
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		out, err := doc.Html()
		if err != nil {
			return "", err
		}
		return collapseBlankLines(out), nil
	}

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return collapseBlankLines(out), nil
}

// Name returns the cleaner type.
func (c *VisibleCleaner) Name() string {
	return "visible"
}

func removeComments(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}

// collapseBlankLines trims lines and drops the empty ones left behind by
// removed elements.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
