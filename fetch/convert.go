package fetch

import (
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// ConvertResult is the markdown rendition of an HTML spec page.
type ConvertResult struct {
	Title    string
	Markdown string
}

// Converter turns HTML spec pages into markdown so their rule definitions can
// be parsed like any other spec document.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates an HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert extracts the main content of an HTML page and renders it as
// markdown. Readability extraction strips navigation and chrome; when it
// cannot find an article the full page body is converted instead.
func (c *Converter) Convert(htmlContent []byte, pageURL string) (*ConvertResult, error) {
	title := extractHTMLTitle(htmlContent)

	base, _ := url.Parse(pageURL)

	content := string(htmlContent)
	if article, err := readability.FromReader(strings.NewReader(content), base); err == nil && article.Content != "" {
		content = article.Content
		if title == "" {
			title = article.Title
		}
	}

	markdown, err := c.converter.ConvertString(content)
	if err != nil {
		return nil, err
	}
	markdown = cleanMarkdown(markdown)

	return &ConvertResult{Title: title, Markdown: markdown}, nil
}

// extractHTMLTitle pulls the <title> text from an HTML document.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return title
}

// cleanMarkdown collapses runaway blank lines left over from conversion and
// unescapes brackets so rule definitions stay parseable.
func cleanMarkdown(markdown string) string {
	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	markdown = strings.ReplaceAll(markdown, `\[`, "[")
	markdown = strings.ReplaceAll(markdown, `\]`, "]")
	return strings.TrimSpace(markdown) + "\n"
}
