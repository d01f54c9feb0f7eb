package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/topicdetect/config"
)

const pageWithNoise = `<!DOCTYPE html>
<html>
<head>
  <title>Head title is not body text</title>
  <style>.a { color: red; }</style>
</head>
<body>
  <h1>  Heading  </h1>
  <script>var secret = "script text";</script>
  <p>First paragraph.</p>
  <iframe src="https://example.com/embed">iframe fallback text</iframe>
  <img src="a.png" alt="image alt">
  <style>.b { color: blue; }</style>
  <!-- a comment -->
  <div><span>Nested</span> <b>words</b></div>
</body>
</html>`

func TestExtractTextSpecExample(t *testing.T) {
	text, err := ExtractText([]byte(`<body><script>ignored</script><p> Hello </p><p>World</p></body>`))

	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", text)
}

func TestExtractTextStripsNonTextElements(t *testing.T) {
	text, err := ExtractText([]byte(pageWithNoise))
	require.NoError(t, err)

	assert.Equal(t, "Heading\nFirst paragraph.\nNested\nwords", text)
	for _, banned := range []string{"script text", "color", "iframe fallback", "image alt", "Head title", "a comment"} {
		assert.NotContains(t, text, banned)
	}
}

func TestExtractTextPreservesDocumentOrder(t *testing.T) {
	text, err := ExtractText([]byte(`<body><ul><li>one</li><li>two</li></ul><p>three</p></body>`))

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, strings.Split(text, "\n"))
}

func TestExtractTextNoVisibleBody(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"empty body", `<html><head><title>t</title></head><body></body></html>`},
		{"only scripts", `<body><script>x()</script><style>p{}</style></body>`},
		{"whitespace only", "<body>   \n\t  </body>"},
		{"empty input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractText([]byte(tt.html))
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestExtractTextIgnoresNoscriptMarkup(t *testing.T) {
	text, err := ExtractText([]byte(`<body><p>Hi</p><noscript><img src="pixel.gif" alt="tracker"><iframe src="x"></iframe></noscript></body>`))

	require.NoError(t, err)
	assert.Equal(t, "Hi", text)
	assert.NotContains(t, text, "<img")
	assert.NotContains(t, text, "<iframe")
}

func TestExtractTextKeepsNoscriptText(t *testing.T) {
	text, err := ExtractText([]byte(`<body><p>Hi</p><noscript><p>Enable JavaScript</p></noscript></body>`))

	require.NoError(t, err)
	assert.Equal(t, "Hi\nEnable JavaScript", text)
}

func TestExtractHTMLDecodesCharset(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		raw         string
		want        string
	}{
		{
			name: "meta charset",
			raw:  "<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9</p></body></html>",
			want: "café",
		},
		{
			name:        "content type header",
			contentType: "text/html; charset=windows-1252",
			raw:         "<body><p>na\xefve \x93quoted\x94</p></body>",
			want:        "naïve \u201cquoted\u201d",
		},
		{
			name: "undeclared utf-8 with late non-ascii",
			raw:  "<body><p>" + strings.Repeat("x", 2048) + "</p><p>日本語 café</p></body>",
			want: strings.Repeat("x", 2048) + "\n日本語 café",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := ExtractHTML([]byte(tt.raw), tt.contentType)

			require.NoError(t, err)
			assert.True(t, utf8.ValidString(text))
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtractorUsesResponseContentType(t *testing.T) {
	fetcher := &fakeFetcher{
		status:      http.StatusOK,
		contentType: "text/html; charset=iso-8859-1",
		body:        "<body><p>Espa\xf1a</p></body>",
	}

	got, err := NewExtractor(fetcher).Extract(context.Background(), "https://example.com/es")

	require.NoError(t, err)
	assert.Equal(t, "España", got.Text)
}

func TestExtractorExtract(t *testing.T) {
	fetcher := &fakeFetcher{status: http.StatusOK, body: `<body><p>Topic text</p></body>`}
	extractor := NewExtractor(fetcher)

	got, err := extractor.Extract(context.Background(), "https://example.com/a")

	require.NoError(t, err)
	assert.Equal(t, "Topic text", got.Text)
	assert.Equal(t, "https://example.com/a", got.SourceURL)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestExtractorFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
	}{
		{"not found", &fakeFetcher{status: http.StatusNotFound}},
		{"server error", &fakeFetcher{status: http.StatusInternalServerError}},
		{"no content", &fakeFetcher{status: http.StatusNoContent}},
		{"network", &fakeFetcher{err: errors.New("dial tcp: connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(tt.fetcher).Extract(context.Background(), "https://example.com")

			assert.ErrorIs(t, err, ErrFetch)
			assert.Equal(t, 1, tt.fetcher.Calls(), "fetch must not be retried")
		})
	}
}

func TestHTTPFetcherGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<body>0123456789</body>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(&config.FetchConfig{UserAgent: "test-agent", MaxBodyBytes: 23})
	resp, err := fetcher.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, "<body>0123456789</body>", string(resp.Body), "a body of exactly max_body_bytes is accepted")
}

func TestHTTPFetcherRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<body>0123456789</body>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(&config.FetchConfig{MaxBodyBytes: 10})
	_, err := fetcher.Get(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

func TestExtractorRejectsOversizedPage(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("a", 100) + "</p></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	extractor := NewExtractor(NewHTTPFetcher(&config.FetchConfig{MaxBodyBytes: 50}))
	_, err := extractor.Extract(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrFetch)
}

func TestHTTPFetcherReturnsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(&config.FetchConfig{})
	resp, err := fetcher.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPFetcherRedirectLimit(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(&config.FetchConfig{})
	_, err := fetcher.Get(context.Background(), server.URL)

	assert.Error(t, err)
}

func TestValidateURL(t *testing.T) {
	valid := []string{"http://example.com", "https://example.com/path?q=1", " https://example.com "}
	invalid := []string{"", "example.com", "ftp://example.com/file", "https://", "::not a url"}

	for _, u := range valid {
		assert.NoError(t, ValidateURL(u), u)
	}
	for _, u := range invalid {
		assert.ErrorIs(t, ValidateURL(u), ErrInputValidation, u)
	}
}
