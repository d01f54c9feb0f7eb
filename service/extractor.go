package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

// nonTextSelectors lists elements that carry no visible text worth modeling.
const nonTextSelectors = "iframe, script, img, style"

// Extractor turns a web page into normalized plain text.
type Extractor struct {
	fetcher Fetcher
}

func NewExtractor(fetcher Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract fetches rawURL once and returns the visible text of its body.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*model.NormalizedText, error) {
	doc, err := fetchDocument(ctx, e.fetcher, rawURL)
	if err != nil {
		return nil, err
	}

	text, err := ExtractHTML(doc.RawBytes, doc.ContentType)
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "extracted page text",
		"url", rawURL,
		"raw_bytes", len(doc.RawBytes),
		"text_bytes", len(text),
	)

	return &model.NormalizedText{Text: text, SourceURL: rawURL}, nil
}

// ExtractText is ExtractHTML for a document with no Content-Type header.
func ExtractText(raw []byte) (string, error) {
	return ExtractHTML(raw, "")
}

// ExtractHTML decodes raw to UTF-8 using contentType or the document's own
// charset declaration, strips non-text elements and joins the body's trimmed
// text nodes with newlines, in document order.
func ExtractHTML(raw []byte, contentType string) (string, error) {
	// Scripting off so <noscript> children parse as elements, not raw text.
	root, err := html.ParseWithOptions(decodeHTML(raw, contentType), html.ParseOptionEnableScripting(false))
	if err != nil {
		return "", wrap(ErrMalformedDocument, fmt.Errorf("parse html: %w", err))
	}
	doc := goquery.NewDocumentFromNode(root)

	doc.Find(nonTextSelectors).Remove()

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", wrap(ErrMalformedDocument, errors.New("document has no body"))
	}

	var lines []string
	for _, n := range body.Nodes {
		lines = collectStrippedStrings(n, lines)
	}
	if len(lines) == 0 {
		return "", wrap(ErrMalformedDocument, errors.New("document body has no visible text"))
	}

	return strings.Join(lines, "\n"), nil
}

// decodeHTML returns a UTF-8 reader over raw. Undeclared pages that are
// already valid UTF-8 are left alone; the sniffer only looks at the first
// 1024 bytes and would otherwise fall back to windows-1252.
func decodeHTML(raw []byte, contentType string) io.Reader {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(raw)) {
		return bytes.NewReader(raw)
	}
	return enc.NewDecoder().Reader(bytes.NewReader(raw))
}

func collectStrippedStrings(n *html.Node, lines []string) []string {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			lines = append(lines, s)
		}
		return lines
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = collectStrippedStrings(c, lines)
	}
	return lines
}
