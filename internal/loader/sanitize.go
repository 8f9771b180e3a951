package loader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// SanitizeResult carries sanitized content together with an explicit mode tag
// so renderers switch on the tag instead of re-validating the markup.
type SanitizeResult struct {
	Mode    domain.SanitizeMode
	Content string
}

// Sanitize runs the degrade ladder over one section's raw markup:
//
//  1. strict: the input is well-formed XML and cleans to non-empty markup;
//  2. lenient: the tolerant HTML parser recovers non-empty markup;
//  3. plain text: all tags are stripped and whitespace collapsed.
//
// It never fails; the worst outcome is an empty plain-text result.
func Sanitize(raw []byte) SanitizeResult {
	raw = stripBOM(raw)
	strict := xmlWellFormed(raw)
	if content, err := sanitizeMarkup(raw); err == nil {
		mode := domain.ModeLenient
		if strict {
			mode = domain.ModeStrict
		}
		return SanitizeResult{Mode: mode, Content: content}
	}
	return SanitizeResult{Mode: domain.ModePlainText, Content: extractPlainText(raw)}
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// xmlWellFormed walks the token stream to the end. HTML named entities are
// mapped so ordinary XHTML passes the check.
func xmlWellFormed(data []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}

// sanitizeMarkup parses the document, extracts the body subtree, and cleans
// it: script/style elements removed; style, class, namespace, and event
// handler attributes stripped; unsafe href/src values dropped. A body without
// block-level structure gets paragraphs synthesized from blank-line-delimited
// text. Fails when no renderable content remains.
func sanitizeMarkup(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return "", errors.New("no body element")
	}
	cleanNode(body)

	if !hasBlockChild(body) {
		return synthesizeParagraphs(body)
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render markup: %w", err)
		}
	}
	content := strings.TrimSpace(buf.String())
	if content == "" {
		return "", errors.New("empty body")
	}
	return content, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// cleanNode recursively removes script/style elements and strips disallowed
// attributes from the subtree rooted at n.
func cleanNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style) {
			n.RemoveChild(c)
			continue
		}
		if c.Type == html.ElementNode {
			stripAttributes(c)
		}
		cleanNode(c)
	}
}

// stripAttributes drops inline style, class, namespace declarations, event
// handlers, and unsafe URI values.
func stripAttributes(n *html.Node) {
	cleaned := n.Attr[:0]
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		switch {
		case key == "style" || key == "class":
			continue
		case key == "xmlns" || strings.HasPrefix(key, "xmlns:") || attr.Namespace == "xmlns":
			continue
		case strings.HasPrefix(key, "on"):
			continue
		case isURIAttribute(attr) && !isSafeURI(attr.Val):
			continue
		}
		cleaned = append(cleaned, attr)
	}
	n.Attr = cleaned
}

func isURIAttribute(attr html.Attribute) bool {
	return attr.Key == "href" || attr.Key == "src"
}

// isSafeURI allows relative references, fragments, http(s), mailto, and
// data:image URIs.
func isSafeURI(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(v, "/") ||
		strings.HasPrefix(v, "./") || strings.HasPrefix(v, "../") || strings.HasPrefix(v, "?") {
		return true
	}
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		return true
	case "http", "https", "mailto":
		return true
	case "data":
		return strings.HasPrefix(strings.ToLower(v), "data:image/")
	default:
		return false
	}
}

// blockAtoms are the elements treated as block-level structure.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Ul: true, atom.Ol: true,
	atom.Table: true, atom.Blockquote: true, atom.Pre: true, atom.Section: true,
	atom.Article: true, atom.Figure: true, atom.Hr: true,
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockAtoms[c.DataAtom] {
			return true
		}
		if hasBlockChild(c) {
			return true
		}
	}
	return false
}

// synthesizeParagraphs wraps blank-line-delimited runs of the body's text in
// <p> elements so structureless fragments still render as paragraphs.
func synthesizeParagraphs(body *html.Node) (string, error) {
	text := strings.TrimSpace(nodeText(body))
	if text == "" {
		return "", errors.New("no text content")
	}
	var buf strings.Builder
	for _, block := range splitBlankLines(text) {
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(strings.Join(strings.Fields(block), " ")))
		buf.WriteString("</p>")
	}
	return buf.String(), nil
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func splitBlankLines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var blocks []string
	for _, block := range strings.Split(normalized, "\n\n") {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		blocks = []string{text}
	}
	return blocks
}

// extractPlainText strips every tag from the input and collapses whitespace,
// inserting line breaks at block-level boundaries. This is the last tier of
// the ladder and accepts arbitrary garbage.
func extractPlainText(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	var buf strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(buf.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				// A self-closing script/style has no end tag to balance.
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth == 0 && (blockAtoms[a] || a == atom.Br || a == atom.Li) && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(tokenizer.Text())), " ")
			if text != "" {
				if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}
	}
}
