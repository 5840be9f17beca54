// Package markup converts Confluence storage-format HTML into Markdown-like
// text for model consumption.
//
// Normalize parses the input into a small tree of Nodes with a closed set
// of kinds and renders it with one switch per kind. Simple is a separate,
// pattern-based converter kept for degraded mode when tree parsing is not
// wanted. Both are pure functions and safe for concurrent use.
package markup

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind identifies what a Node renders as.
type Kind int

const (
	KindText Kind = iota
	KindContainer
	KindOther
	KindHeading
	KindParagraph
	KindBold
	KindItalic
	KindInlineCode
	KindCodeBlock
	KindAnchor
	KindUnorderedList
	KindOrderedList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindLineBreak
	KindHorizontalRule
	KindImage
	KindBlockquote
)

// Node is one element or text run of a parsed document.
type Node struct {
	Kind Kind
	// Tag is the lowercased element name, empty for text.
	Tag string
	// Level is the heading level, 1 to 6.
	Level int
	// Text holds the run for text leaves and the literal content of code blocks.
	Text string

	Href string
	Src  string
	Alt  string
	// Lang is the language hint of a code block.
	Lang string

	Children []*Node
}

// dropped elements never contribute to output.
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var kindByAtom = map[atom.Atom]Kind{
	atom.P:          KindParagraph,
	atom.B:          KindBold,
	atom.Strong:     KindBold,
	atom.I:          KindItalic,
	atom.Em:         KindItalic,
	atom.Code:       KindInlineCode,
	atom.Pre:        KindCodeBlock,
	atom.A:          KindAnchor,
	atom.Ul:         KindUnorderedList,
	atom.Ol:         KindOrderedList,
	atom.Li:         KindListItem,
	atom.Table:      KindTable,
	atom.Tr:         KindTableRow,
	atom.Td:         KindTableCell,
	atom.Th:         KindTableCell,
	atom.Br:         KindLineBreak,
	atom.Hr:         KindHorizontalRule,
	atom.Img:        KindImage,
	atom.Blockquote: KindBlockquote,
	atom.Div:        KindContainer,
	atom.Span:       KindContainer,
	atom.Section:    KindContainer,
	atom.Article:    KindContainer,
	atom.Main:       KindContainer,
	atom.Body:       KindContainer,
	atom.Header:     KindContainer,
	atom.Footer:     KindContainer,
	atom.Nav:        KindContainer,
	atom.Aside:      KindContainer,
	atom.Figure:     KindContainer,
	atom.Thead:      KindContainer,
	atom.Tbody:      KindContainer,
	atom.Tfoot:      KindContainer,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// Parse reads an HTML document or fragment and returns the body as a
// container Node.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	root := &Node{Kind: KindContainer, Tag: "body"}
	if body := findBody(doc); body != nil {
		root.Children = convertChildren(body)
	}
	return root, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func convertChildren(n *html.Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if node := convert(c); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func convert(n *html.Node) *Node {
	switch n.Type {
	case html.TextNode:
		return &Node{Kind: KindText, Text: n.Data}
	case html.ElementNode:
	default:
		return nil
	}
	if dropped[n.DataAtom] {
		return nil
	}

	node := &Node{Kind: KindOther, Tag: strings.ToLower(n.Data)}
	if lvl, ok := headingLevel[n.DataAtom]; ok {
		node.Kind = KindHeading
		node.Level = lvl
	} else if k, ok := kindByAtom[n.DataAtom]; ok {
		node.Kind = k
	}

	switch node.Kind {
	case KindCodeBlock:
		// Code blocks keep their literal text and nothing else.
		node.Text = textContent(n)
		node.Lang = codeLanguage(n)
		return node
	case KindAnchor:
		node.Href = attr(n, "href")
	case KindImage:
		node.Src = attr(n, "src")
		node.Alt = attr(n, "alt")
	}

	node.Children = convertChildren(n)
	return node
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// codeLanguage finds a "language-X" class on the block or its code child.
func codeLanguage(pre *html.Node) string {
	if lang := languageClass(attr(pre, "class")); lang != "" {
		return lang
	}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			return languageClass(attr(c, "class"))
		}
	}
	return ""
}

func languageClass(class string) string {
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok && lang != "" {
			return lang
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && dropped[n.DataAtom]:
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
