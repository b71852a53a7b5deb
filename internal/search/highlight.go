package search

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Result is a rendered document with its highlighted matches.
type Result struct {
	HTML    string `json:"html"`
	Matches int    `json:"matches"`
	Current int    `json:"current"`
}

// Highlight renders markdown to HTML, wrapping every match of query in a
// <mark> numbered in document order starting at 0. The match whose number
// equals current also carries the search-highlight-current class.
//
// Matching runs over the visible text of each block, so a match may cross
// inline markup, code spans and links. Such a match is split into several
// <mark> elements that share one data-search-index.
func Highlight(markdown, query string, current int) (Result, error) {
	hl := &highlighter{re: Pattern(query), current: current}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(hl, 100)),
		),
	)
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))
	hl.collect(doc, source)

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, source, doc); err != nil {
		return Result{}, fmt.Errorf("render markdown: %w", err)
	}
	return Result{HTML: buf.String(), Matches: hl.next, Current: current}, nil
}

// span is one match, or the part of a match that falls inside a piece.
type span struct {
	start, end int
	index      int
}

// piece is visible text owned by one node, as it will be written.
type piece struct {
	text  []byte
	spans []span
}

type highlighter struct {
	re      *regexp.Regexp
	current int
	next    int

	pieces map[ast.Node][]*piece
	run    []*piece
}

// collect walks the document once in render order, gathering the visible
// text of each block into a run and numbering the matches found in it.
func (h *highlighter) collect(doc ast.Node, source []byte) {
	h.pieces = make(map[ast.Node][]*piece)
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if node.Type() == ast.TypeBlock {
			h.flush()
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Text:
			h.collectText(n, source)
		case *ast.String:
			if n.IsCode() {
				h.flush()
			} else {
				h.add(n, n.Value)
			}
		case *ast.AutoLink:
			h.add(n, n.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				h.add(n, seg.Value(source))
			}
		case *ast.RawHTML, *ast.HTMLBlock:
			h.flush()
		case *ast.Image:
			// alt text is written as an attribute, never highlighted
			h.flush()
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	h.flush()
}

func (h *highlighter) collectText(n *ast.Text, source []byte) {
	value := n.Segment.Value(source)
	if n.IsRaw() {
		h.flush()
		return
	}
	if _, inCode := n.Parent().(*ast.CodeSpan); inCode {
		if bytes.HasSuffix(value, []byte("\n")) {
			value = append(value[:len(value)-1:len(value)-1], ' ')
		}
		h.add(n, value)
		return
	}
	value = util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(value)))
	if n.SoftLineBreak() && !n.HardLineBreak() {
		value = append(value[:len(value):len(value)], '\n')
	}
	h.add(n, value)
	if n.HardLineBreak() {
		h.flush()
	}
}

func (h *highlighter) add(node ast.Node, text []byte) {
	p := &piece{text: text}
	h.pieces[node] = append(h.pieces[node], p)
	h.run = append(h.run, p)
}

// flush matches the current run and hands each match to the pieces it covers.
func (h *highlighter) flush() {
	if len(h.run) == 0 {
		return
	}
	defer func() { h.run = h.run[:0] }()
	if h.re == nil {
		return
	}
	var joined []byte
	offsets := make([]int, len(h.run))
	for i, p := range h.run {
		offsets[i] = len(joined)
		joined = append(joined, p.text...)
	}
	for _, loc := range h.re.FindAllIndex(joined, -1) {
		index := h.next
		h.next++
		for i, p := range h.run {
			lo := max(loc[0], offsets[i])
			hi := min(loc[1], offsets[i]+len(p.text))
			if lo < hi {
				p.spans = append(p.spans, span{start: lo - offsets[i], end: hi - offsets[i], index: index})
			}
		}
	}
}

func (h *highlighter) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindText, h.renderText)
	reg.Register(ast.KindString, h.renderString)
	reg.Register(ast.KindCodeSpan, h.renderCodeSpan)
	reg.Register(ast.KindCodeBlock, h.renderCodeBlock)
	reg.Register(ast.KindFencedCodeBlock, h.renderFencedCodeBlock)
	reg.Register(ast.KindAutoLink, h.renderAutoLink)
}

func (h *highlighter) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Text)
	if n.IsRaw() {
		_, _ = w.Write(util.EscapeHTML(n.Segment.Value(source)))
		return ast.WalkContinue, nil
	}
	h.writePieces(w, n)
	if n.HardLineBreak() {
		_, _ = w.WriteString("<br>\n")
	}
	return ast.WalkContinue, nil
}

func (h *highlighter) renderString(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.String)
	if n.IsCode() {
		_, _ = w.Write(n.Value)
		return ast.WalkContinue, nil
	}
	h.writePieces(w, n)
	return ast.WalkContinue, nil
}

func (h *highlighter) renderCodeSpan(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<code>")
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		h.writePieces(w, c)
	}
	return ast.WalkSkipChildren, nil
}

func (h *highlighter) renderCodeBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<pre><code>")
	h.writePieces(w, node)
	return ast.WalkContinue, nil
}

func (h *highlighter) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	_, _ = w.WriteString("<pre><code")
	if lang := n.Language(source); lang != nil {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	h.writePieces(w, n)
	return ast.WalkContinue, nil
}

func (h *highlighter) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.AutoLink)
	url := n.URL(source)
	_, _ = w.WriteString(`<a href="`)
	if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
		_, _ = w.WriteString("mailto:")
	}
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(url, false)))
	_, _ = w.WriteString(`">`)
	h.writePieces(w, n)
	_, _ = w.WriteString("</a>")
	return ast.WalkContinue, nil
}

// writePieces escapes the node's text and wraps its matches.
func (h *highlighter) writePieces(w util.BufWriter, node ast.Node) {
	for _, p := range h.pieces[node] {
		last := 0
		for _, s := range p.spans {
			_, _ = w.Write(util.EscapeHTML(p.text[last:s.start]))
			class := "search-highlight"
			if s.index == h.current {
				class += " search-highlight-current"
			}
			fmt.Fprintf(w, `<mark class="%s" data-search-index="%d">`, class, s.index)
			_, _ = w.Write(util.EscapeHTML(p.text[s.start:s.end]))
			_, _ = w.WriteString("</mark>")
			last = s.end
		}
		_, _ = w.Write(util.EscapeHTML(p.text[last:]))
	}
}
