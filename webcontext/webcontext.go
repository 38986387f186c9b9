// Package webcontext fetches a public web page and converts it to
// markdown for use as additional prompt context. Fetching is guarded
// against SSRF: only HTTPS URLs resolving to public addresses are
// allowed, redirects are re-validated, and response size is capped.
package webcontext

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "semprompt/1.0"
	defaultMaxFetch  = 2 << 20 // 2MB
	defaultMaxChars  = 8000
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds the whole fetch, including redirects.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxFetchBytes caps the downloaded page size.
	MaxFetchBytes int64

	// MaxChars caps the markdown passed on as context.
	MaxChars int

	// Logger for logging events.
	Logger *slog.Logger
}

// Page is a fetched web page reduced to markdown.
type Page struct {
	URL       string
	Title     string
	Markdown  string
	Truncated bool
}

// AsContext formats the page for inclusion in an enhancement's context
// field.
func (p *Page) AsContext() string {
	var b strings.Builder
	b.WriteString("Reference material")
	if p.Title != "" {
		fmt.Fprintf(&b, " (%s)", p.Title)
	}
	fmt.Fprintf(&b, " from %s:\n\n", p.URL)
	b.WriteString(p.Markdown)
	if p.Truncated {
		b.WriteString("\n\n[truncated]")
	}
	return b.String()
}

// Service fetches pages and converts them to markdown.
type Service struct {
	fetcher   *Fetcher
	converter *md.Converter
	logger    *slog.Logger
	maxChars  int
}

// NewService creates a Service with the given options.
func NewService(opts Options) *Service {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxFetchBytes == 0 {
		opts.MaxFetchBytes = defaultMaxFetch
	}
	if opts.MaxChars == 0 {
		opts.MaxChars = defaultMaxChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Service{
		fetcher:   NewFetcher(opts.Timeout, opts.UserAgent, opts.MaxFetchBytes),
		converter: converter,
		logger:    logger,
		maxChars:  opts.MaxChars,
	}
}

// Build fetches the URL and returns its readable content as markdown.
func (s *Service) Build(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if ct := res.ContentType; ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	page, err := s.render(res.Body, parsed, rawURL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Built web context",
		"domain", ExtractDomain(rawURL),
		"title", page.Title,
		"chars", len(page.Markdown),
		"truncated", page.Truncated,
		"duration", time.Since(start))

	return page, nil
}

// render converts fetched HTML into a Page. Readability extraction runs
// first; pages it cannot handle go through manual DOM cleanup instead.
func (s *Service) render(body []byte, pageURL *url.URL, rawURL string) (*Page, error) {
	content, title := extractReadable(body, pageURL)

	markdown, err := s.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)
	if markdown == "" {
		return nil, fmt.Errorf("no readable content at %s", rawURL)
	}

	if title == "" {
		title = extractMarkdownTitle(markdown)
	}

	markdown, truncated := truncateMarkdown(markdown, s.maxChars)

	return &Page{
		URL:       rawURL,
		Title:     title,
		Markdown:  markdown,
		Truncated: truncated,
	}, nil
}

// truncateMarkdown cuts markdown at a rune boundary, preferring to end
// at a line break when one falls in the second half of the budget.
func truncateMarkdown(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	cut := text[:max]
	if idx := strings.LastIndex(cut, "\n"); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut), true
}
