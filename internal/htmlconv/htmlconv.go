// Package htmlconv turns article HTML into compact markdown for prompts.
package htmlconv

import (
	"bytes"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/codefionn/mathchat/internal/logger"
)

// HTML tag pattern for detection
var htmlTagPattern = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`)

var (
	multipleNewlines = regexp.MustCompile(`\n{3,}`)
	// Citation markers such as [1] or [note 2] left over after conversion.
	citationMarker = regexp.MustCompile(`\\?\[(?:\d+|note \d+|citation needed)\\?\]`)
)

// Threshold for considering text as HTML (number of HTML tags)
const htmlTagThreshold = 3

// ConvertIfHTML detects if the input is HTML and converts it to markdown if needed.
// Returns the converted text and a boolean indicating if conversion was performed.
func ConvertIfHTML(input string) (string, bool) {
	if !isHTML(input) {
		return input, false
	}

	markdown, err := ToMarkdown(input)
	if err != nil {
		logger.Warn("Failed to convert HTML to markdown: %v", err)
		return input, false
	}
	return markdown, true
}

// ToMarkdown converts an article fragment to markdown. Navigation, reference
// lists, infoboxes and edit links are dropped; math markup is replaced with
// its TeX source.
func ToMarkdown(input string) (string, error) {
	cleanedHTML, err := preprocessHTML(input)
	if err != nil {
		logger.Warn("Failed to preprocess HTML: %v, using original", err)
		cleanedHTML = input
	}

	markdown, err := htmltomarkdown.ConvertString(cleanedHTML)
	if err != nil {
		return "", err
	}

	markdown = cleanMarkdown(markdown)
	logger.Debug("Converted HTML to markdown (%d -> %d bytes)", len(input), len(markdown))
	return markdown, nil
}

// PlainText converts HTML to markdown and drops link targets and emphasis so
// the result reads as prose.
func PlainText(input string) (string, error) {
	markdown, err := ToMarkdown(input)
	if err != nil {
		return "", err
	}
	return stripMarkdownDecoration(markdown), nil
}

var (
	markdownLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markdownEmphasis = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
)

func stripMarkdownDecoration(markdown string) string {
	markdown = markdownLink.ReplaceAllString(markdown, "$1")
	markdown = markdownEmphasis.ReplaceAllString(markdown, "$2")
	return strings.TrimSpace(markdown)
}

// preprocessHTML cleans up HTML by removing unwanted elements
func preprocessHTML(input string) (string, error) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input, err
	}

	mainContent := findMainContent(doc)
	replaceMath(mainContent)
	removeUnwantedNodes(mainContent)

	var buf bytes.Buffer
	if err := html.Render(&buf, mainContent); err != nil {
		return input, err
	}
	return buf.String(), nil
}

// isHTML detects if the input text is likely HTML
func isHTML(input string) bool {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return true
	}

	tagCount := len(htmlTagPattern.FindAllString(input, -1))
	if tagCount == 0 {
		return false
	}
	if tagCount >= htmlTagThreshold {
		return true
	}

	hasHTMLStructure := strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<table") ||
		strings.Contains(lower, "<ul>") ||
		strings.Contains(lower, "<ol>") ||
		strings.Contains(lower, "<h1") ||
		strings.Contains(lower, "<h2")

	return tagCount >= 2 && hasHTMLStructure
}

// cleanMarkdown performs post-processing cleanup on converted markdown
func cleanMarkdown(markdown string) string {
	markdown = citationMarker.ReplaceAllString(markdown, "")
	markdown = multipleNewlines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

// removeUnwantedNodes recursively removes unwanted elements from the HTML tree
func removeUnwantedNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		removeUnwantedNodes(child)
		child = next
	}

	if shouldRemoveNode(n) && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// replaceMath swaps MediaWiki math elements for their TeX annotation so
// formulas survive the conversion as text.
func replaceMath(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		replaceMath(child)
		child = next
	}

	if n.Type != html.ElementNode || !hasClass(n, "mwe-math-element") || n.Parent == nil {
		return
	}

	tex := mathSource(n)
	if tex == "" {
		return
	}
	n.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: "$" + tex + "$"}, n)
	n.Parent.RemoveChild(n)
}

func mathSource(n *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if found != "" {
			return
		}
		if c.Type == html.ElementNode {
			if c.Data == "annotation" && attr(c, "encoding") == "application/x-tex" && c.FirstChild != nil {
				found = strings.TrimSpace(c.FirstChild.Data)
				return
			}
			if c.Data == "img" {
				if alt := attr(c, "alt"); alt != "" {
					found = strings.TrimSpace(alt)
					return
				}
			}
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	found = strings.TrimPrefix(found, "{\\displaystyle ")
	if strings.HasSuffix(found, "}") && strings.Count(found, "{") < strings.Count(found, "}") {
		found = strings.TrimSuffix(found, "}")
	}
	return strings.TrimSpace(found)
}

// findMainContent attempts to find the main content node in the HTML document
func findMainContent(doc *html.Node) *html.Node {
	if doc.Type != html.DocumentNode {
		return doc
	}

	var parserOutput, main, article, body *html.Node
	var search func(n *html.Node)
	search = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case parserOutput == nil && hasClass(n, "mw-parser-output"):
				parserOutput = n
			case main == nil && n.Data == "main":
				main = n
			case article == nil && n.Data == "article":
				article = n
			case body == nil && n.Data == "body":
				body = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	search(doc)

	for _, candidate := range []*html.Node{parserOutput, main, article, body} {
		if candidate != nil {
			return candidate
		}
	}
	return doc
}

// unwantedClasses are MediaWiki blocks that carry no article prose.
var unwantedClasses = []string{
	"reference", "references", "reflist", "mw-editsection", "infobox", "navbox",
	"hatnote", "shortdescription", "mw-empty-elt", "metadata", "thumb", "sidebar",
}

// shouldRemoveNode determines if a node should be removed
func shouldRemoveNode(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}

	switch n.Data {
	case "script", "style", "noscript", "meta", "link", "head", "header",
		"footer", "nav", "aside", "iframe", "svg", "figure":
		return true
	}

	for _, class := range unwantedClasses {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
