package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/mathchat/internal/consts"
	"github.com/codefionn/mathchat/internal/htmlconv"
	"github.com/codefionn/mathchat/internal/logger"
)

const (
	// NoWikipediaResult is returned when a search finds no usable page.
	NoWikipediaResult = "No good Wikipedia Search Result was found"

	maxWikipediaQueryLength = 300
	defaultWikipediaAgent   = "mathchat/1.0 (https://github.com/codefionn/mathchat)"
)

// WikipediaOptions configures WikipediaTool. Zero values select defaults.
type WikipediaOptions struct {
	Language     string
	TopK         int
	MaxChars     int
	CacheEntries int
	UserAgent    string
	Timeout      time.Duration
	// Endpoint overrides the api.php URL derived from Language.
	Endpoint   string
	HTTPClient *http.Client
}

// WikipediaTool searches Wikipedia and returns the lead section of the best
// matching pages.
type WikipediaTool struct {
	endpoint  string
	topK      int
	maxChars  int
	userAgent string
	client    *http.Client
	cache     *resultCache
}

// NewWikipediaTool creates the Wikipedia lookup tool.
func NewWikipediaTool(opts WikipediaOptions) *WikipediaTool {
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "en"
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 4000
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultWikipediaAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = consts.Timeout15Seconds
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &WikipediaTool{
		endpoint:  endpoint,
		topK:      opts.TopK,
		maxChars:  opts.MaxChars,
		userAgent: opts.UserAgent,
		client:    client,
		cache:     newResultCache(opts.CacheEntries),
	}
}

func (t *WikipediaTool) Name() string {
	return ToolNameWikipedia
}

func (t *WikipediaTool) Description() string {
	return "A tool for searching the Internet to find various information on the topics mentioned"
}

func (t *WikipediaTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search terms, e.g. 'speed of light' or 'Pythagorean theorem'.",
				"minLength":   1,
			},
		},
		"required": []string{"query"},
	}
}

func (t *WikipediaTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	query := strings.TrimSpace(strings.Trim(GetStringParam(params, "query", ""), "\"'`"))
	if len(query) > maxWikipediaQueryLength {
		query = query[:maxWikipediaQueryLength]
	}
	if query == "" {
		return &ToolResult{Error: "query is required"}
	}

	key := cacheKey(t.endpoint, query)
	if cached, ok := t.cache.get(key); ok {
		return &ToolResult{
			Result:            cached,
			ExecutionMetadata: &ExecutionMetadata{Details: map[string]interface{}{"query": query, "cached": true}},
		}
	}

	summary, pages, err := t.lookup(ctx, query)
	if err != nil {
		return &ToolResult{Error: fmt.Sprintf("wikipedia lookup failed: %v", err)}
	}
	t.cache.put(key, summary)

	return &ToolResult{
		Result: summary,
		ExecutionMetadata: &ExecutionMetadata{
			Details: map[string]interface{}{"query": query, "pages": pages},
		},
	}
}

type wikiPage struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Missing bool   `json:"missing"`
}

func (t *WikipediaTool) lookup(ctx context.Context, query string) (string, []string, error) {
	titles, err := t.search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	if len(titles) == 0 {
		return NoWikipediaResult, nil, nil
	}

	summaries := make([]string, len(titles))
	var wg sync.WaitGroup
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			page, err := t.intro(ctx, title)
			if err != nil {
				logger.Warn("wikipedia: skipping page %q: %v", title, err)
				return
			}
			if page == nil || page.Missing || strings.TrimSpace(page.Extract) == "" {
				return
			}
			text, err := htmlconv.PlainText(page.Extract)
			if err != nil || text == "" {
				return
			}
			summaries[i] = fmt.Sprintf("Page: %s\nSummary: %s", page.Title, text)
		}(i, title)
	}
	wg.Wait()

	var blocks, pages []string
	for i, s := range summaries {
		if s != "" {
			blocks = append(blocks, s)
			pages = append(pages, titles[i])
		}
	}
	if len(blocks) == 0 {
		return NoWikipediaResult, nil, nil
	}

	out := strings.Join(blocks, "\n\n")
	if runes := []rune(out); len(runes) > t.maxChars {
		out = string(runes[:t.maxChars])
	}
	return out, pages, nil
}

func (t *WikipediaTool) search(ctx context.Context, query string) ([]string, error) {
	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	err := t.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(t.topK)},
		"srprop":   {""},
	}, &resp)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		if hit.Title != "" {
			titles = append(titles, hit.Title)
		}
	}
	if len(titles) > t.topK {
		titles = titles[:t.topK]
	}
	return titles, nil
}

func (t *WikipediaTool) intro(ctx context.Context, title string) (*wikiPage, error) {
	var resp struct {
		Query struct {
			Pages []wikiPage `json:"pages"`
		} `json:"query"`
	}
	err := t.get(ctx, url.Values{
		"action":    {"query"},
		"prop":      {"extracts"},
		"exintro":   {"1"},
		"redirects": {"1"},
		"titles":    {title},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, nil
	}
	return &resp.Query.Pages[0], nil
}

func (t *WikipediaTool) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("utf8", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize4KB))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(io.LimitReader(resp.Body, consts.BufferSize1MB)).Decode(out)
}
