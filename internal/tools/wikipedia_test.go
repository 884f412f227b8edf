package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWiki struct {
	pages    map[string]string
	searches atomic.Int32
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case q.Get("list") == "search":
		f.searches.Add(1)
		var hits []map[string]string
		for _, title := range []string{"Pi", "Pi (letter)", "Tau", "Circle"} {
			if strings.Contains(strings.ToLower(title), strings.ToLower(q.Get("srsearch"))) {
				hits = append(hits, map[string]string{"title": title})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query": map[string]interface{}{"search": hits},
		})
	case q.Get("prop") == "extracts":
		title := q.Get("titles")
		page := map[string]interface{}{"title": title}
		if extract, ok := f.pages[title]; ok {
			page["extract"] = extract
		} else {
			page["missing"] = true
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query": map[string]interface{}{"pages": []interface{}{page}},
		})
	default:
		http.Error(w, "bad request", http.StatusBadRequest)
	}
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{pages: map[string]string{
		"Pi":          `<p>The number <b>π</b> is a <a href="/wiki/Mathematical_constant">mathematical constant</a> that is the ratio of a circle's circumference to its diameter.</p>`,
		"Pi (letter)": `<p><b>Pi</b> is the sixteenth letter of the Greek alphabet.</p>`,
	}}
}

func TestWikipediaToolFormatsPages(t *testing.T) {
	wiki := newFakeWiki()
	srv := httptest.NewServer(wiki)
	defer srv.Close()

	tool := NewWikipediaTool(WikipediaOptions{Endpoint: srv.URL, CacheEntries: 8})
	res := tool.Execute(context.Background(), map[string]interface{}{"query": "pi"})
	require.Empty(t, res.Error)

	text := res.Text()
	blocks := strings.Split(text, "\n\n")
	require.Len(t, blocks, 2)
	assert.True(t, strings.HasPrefix(blocks[0], "Page: Pi\nSummary: "), blocks[0])
	assert.Contains(t, blocks[0], "mathematical constant")
	assert.NotContains(t, blocks[0], "<a")
	assert.NotContains(t, blocks[0], "/wiki/")
	assert.True(t, strings.HasPrefix(blocks[1], "Page: Pi (letter)\nSummary: "), blocks[1])
	assert.Equal(t, []string{"Pi", "Pi (letter)"}, res.ExecutionMetadata.Details["pages"])
}

func TestWikipediaToolNoResults(t *testing.T) {
	srv := httptest.NewServer(newFakeWiki())
	defer srv.Close()

	tool := NewWikipediaTool(WikipediaOptions{Endpoint: srv.URL})
	res := tool.Execute(context.Background(), map[string]interface{}{"query": "zebra"})
	require.Empty(t, res.Error)
	assert.Equal(t, NoWikipediaResult, res.Text())

	// Tau is found by search but has no extract.
	res = tool.Execute(context.Background(), map[string]interface{}{"query": "tau"})
	require.Empty(t, res.Error)
	assert.Equal(t, NoWikipediaResult, res.Text())
}

func TestWikipediaToolTruncatesAndCaches(t *testing.T) {
	wiki := newFakeWiki()
	srv := httptest.NewServer(wiki)
	defer srv.Close()

	tool := NewWikipediaTool(WikipediaOptions{Endpoint: srv.URL, MaxChars: 20, TopK: 1, CacheEntries: 4})
	first := tool.Execute(context.Background(), map[string]interface{}{"query": "Pi"})
	require.Empty(t, first.Error)
	assert.Equal(t, "Page: Pi\nSummary: Th", first.Text())

	second := tool.Execute(context.Background(), map[string]interface{}{"query": "  pi "})
	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, true, second.ExecutionMetadata.Details["cached"])
	assert.Equal(t, int32(1), wiki.searches.Load())
}

func TestWikipediaToolHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := NewWikipediaTool(WikipediaOptions{Endpoint: srv.URL})
	res := tool.Execute(context.Background(), map[string]interface{}{"query": "pi"})
	assert.Contains(t, res.Error, "status 503")
	assert.Equal(t, "Error: "+res.Error, res.Text())
}

func TestWikipediaToolSendsUserAgent(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "2", r.URL.Query().Get("formatversion"))
		_, _ = w.Write([]byte(`{"query":{"search":[]}}`))
	}))
	defer srv.Close()

	tool := NewWikipediaTool(WikipediaOptions{Endpoint: srv.URL, UserAgent: "mathchat-test"})
	res := tool.Execute(context.Background(), map[string]interface{}{"query": "pi"})
	require.Empty(t, res.Error)
	assert.Equal(t, "mathchat-test", agent.Load())
}

func TestWikipediaToolDefaultEndpoint(t *testing.T) {
	tool := NewWikipediaTool(WikipediaOptions{Language: "de"})
	assert.Equal(t, "https://de.wikipedia.org/w/api.php", tool.endpoint)
	assert.Equal(t, 3, tool.topK)
	assert.Equal(t, 4000, tool.maxChars)
}
