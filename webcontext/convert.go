package webcontext

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Pre-compiled regexes, parsed once to avoid recompiling per page.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Page chrome that never carries article content.
var (
	strippedTags = map[string]bool{
		"nav": true, "header": true, "footer": true, "aside": true,
		"script": true, "style": true, "noscript": true, "iframe": true,
		"object": true, "embed": true, "form": true, "input": true,
		"button": true,
	}
	strippedClasses = map[string]bool{
		"nav": true, "navbar": true, "navigation": true, "sidebar": true,
		"menu": true, "toc": true, "table-of-contents": true,
		"footer": true, "header": true, "ad": true, "advertisement": true,
		"social": true, "share": true, "comments": true, "related": true,
		"breadcrumb": true,
	}
)

// extractReadable returns the readable portion of the page as HTML plus
// the page title. Readability handles article-shaped pages well; pages
// it cannot parse fall back to manual DOM cleanup.
func extractReadable(body []byte, pageURL *url.URL) (string, string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		return article.Content, strings.TrimSpace(article.Title)
	}
	return extractMainContent(body), extractHTMLTitle(body)
}

// extractMainContent pulls the main content area out of a full page.
func extractMainContent(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		// Fall back to basic cleanup if parsing fails
		return basicHTMLCleanup(string(content))
	}

	// Prefer explicit content landmarks
	for _, tag := range []string{"main", "article"} {
		if node := findTag(doc, tag); node != nil {
			return renderNode(node)
		}
	}
	if node := findAttr(doc, "role", "main"); node != nil {
		return renderNode(node)
	}

	// Otherwise strip chrome and use the whole body
	stripChrome(doc)
	if body := findTag(doc, "body"); body != nil {
		return renderNode(body)
	}

	return string(content)
}

// extractHTMLTitle extracts the document title.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	if node := findTag(doc, "title"); node != nil && node.FirstChild != nil {
		return strings.TrimSpace(node.FirstChild.Data)
	}
	return ""
}

// findTag finds the first element with the given tag name.
func findTag(n *html.Node, tag string) *html.Node {
	return findNode(n, func(node *html.Node) bool {
		return node.Data == tag
	})
}

// findAttr finds the first element carrying the given attribute value.
func findAttr(n *html.Node, key, val string) *html.Node {
	return findNode(n, func(node *html.Node) bool {
		for _, a := range node.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	})
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// stripChrome removes navigation, scripts, forms, and similar elements
// in a single pass over the tree.
func stripChrome(n *html.Node) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if strippedTags[node.Data] || hasStrippedClass(node) {
				toRemove = append(toRemove, node)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func hasStrippedClass(node *html.Node) bool {
	for _, a := range node.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(strings.ToLower(a.Val)) {
			if strippedClasses[c] {
				return true
			}
		}
	}
	return false
}

// renderNode renders a node and its children back to HTML string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// basicHTMLCleanup provides basic HTML cleanup when parsing fails.
func basicHTMLCleanup(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	content = styleRe.ReplaceAllString(content, "")
	return content
}

// cleanMarkdown cleans up converted markdown.
func cleanMarkdown(content string) string {
	// Remove excessive blank lines (more than 2)
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	// Remove trailing whitespace from lines
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	return strings.TrimSpace(content)
}

// extractMarkdownTitle extracts the first H1 heading from markdown.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
