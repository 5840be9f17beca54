package markup

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankRun   = regexp.MustCompile(`[ \t\f]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
	trailingWS = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Normalize converts storage-format HTML to Markdown-like text.
// Empty or whitespace-only input yields "".
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	root, err := Parse(strings.NewReader(input))
	if err != nil {
		// Reading from a string cannot fail; keep a usable result regardless.
		return Simple(input)
	}
	return Render(root)
}

// Render turns a parsed tree into cleaned-up Markdown-like text.
func Render(root *Node) string {
	if root == nil {
		return ""
	}
	return cleanup(block(root))
}

func cleanup(s string) string {
	s = trailingWS.ReplaceAllString(s, "")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func collapse(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// block renders n in block context.
func block(n *Node) string {
	switch n.Kind {
	case KindText:
		return collapse(n.Text)

	case KindHeading:
		text := strings.TrimSpace(inline(n))
		return "\n" + strings.Repeat("#", n.Level) + " " + text + "\n"

	case KindParagraph:
		text := strings.TrimSpace(children(n, keepEdges))
		if text == "" {
			return ""
		}
		return text + "\n"

	case KindBold, KindItalic, KindInlineCode, KindAnchor:
		return inlineElement(n)

	case KindCodeBlock:
		code := n.Text
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		return "\n```" + n.Lang + "\n" + code + "```\n"

	case KindUnorderedList, KindOrderedList:
		return list(n)

	case KindListItem:
		return strings.TrimSpace(children(n, dropBlank))

	case KindTable:
		return table(n)

	case KindLineBreak:
		return "\n"

	case KindHorizontalRule:
		return "\n---\n"

	case KindImage:
		if n.Src == "" {
			return ""
		}
		return "![" + n.Alt + "](" + n.Src + ")"

	case KindBlockquote:
		var lines []string
		for _, line := range strings.Split(children(n, keepLines), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines = append(lines, "> "+strings.TrimSpace(line))
		}
		if len(lines) == 0 {
			return ""
		}
		return strings.Join(lines, "\n") + "\n"

	case KindContainer:
		if n.Tag == "span" {
			return children(n, keepEdges)
		}
		return children(n, dropBlank)

	default:
		return inline(n)
	}
}

// textMode controls how direct text children of a block are emitted.
type textMode int

const (
	// keepEdges collapses whitespace runs to one space.
	keepEdges textMode = iota
	// dropBlank also drops whitespace-only runs, so indentation between
	// child elements disappears.
	dropBlank
	// keepLines collapses spaces but keeps line breaks.
	keepLines
)

// children renders each child in block context.
func children(n *Node, mode textMode) string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.Kind != KindText {
			b.WriteString(block(c))
			continue
		}
		switch mode {
		case dropBlank:
			if strings.TrimSpace(c.Text) != "" {
				b.WriteString(collapse(c.Text))
			}
		case keepLines:
			b.WriteString(blankRun.ReplaceAllString(c.Text, " "))
		default:
			b.WriteString(collapse(c.Text))
		}
	}
	return b.String()
}

// inline renders the visible text of n's subtree with inline formatting.
func inline(n *Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		switch c.Kind {
		case KindText:
			b.WriteString(collapse(c.Text))
		case KindBold, KindItalic, KindInlineCode, KindAnchor:
			b.WriteString(inlineElement(c))
		case KindCodeBlock:
			b.WriteString(collapse(c.Text))
		case KindLineBreak:
			b.WriteByte(' ')
		default:
			b.WriteString(inline(c))
		}
	}
	return b.String()
}

func inlineElement(n *Node) string {
	switch n.Kind {
	case KindBold:
		return wrap("**", strings.TrimSpace(inline(n)))
	case KindItalic:
		return wrap("*", strings.TrimSpace(inline(n)))
	case KindInlineCode:
		return wrap("`", strings.TrimSpace(plain(n)))
	case KindAnchor:
		text := strings.TrimSpace(inline(n))
		if n.Href == "" {
			return text
		}
		return "[" + text + "](" + n.Href + ")"
	}
	return inline(n)
}

func wrap(marker, text string) string {
	if text == "" {
		return ""
	}
	return marker + text + marker
}

// plain is the unformatted visible text of n's subtree.
func plain(n *Node) string {
	if n.Kind == KindText || n.Kind == KindCodeBlock {
		return collapse(n.Text)
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(plain(c))
	}
	return b.String()
}

func list(n *Node) string {
	var items []string
	for _, c := range n.Children {
		if c.Kind != KindListItem {
			continue
		}
		text := strings.TrimSpace(inline(c))
		if n.Kind == KindOrderedList {
			items = append(items, fmt.Sprintf("%d. %s", len(items)+1, text))
		} else {
			items = append(items, "- "+text)
		}
	}
	if len(items) == 0 {
		return ""
	}
	return strings.Join(items, "\n") + "\n"
}

func table(n *Node) string {
	rows := collectRows(n, nil)
	if len(rows) == 0 {
		return ""
	}

	var lines []string
	for i, row := range rows {
		var cells []string
		for _, c := range row.Children {
			if c.Kind == KindTableCell {
				cells = append(cells, strings.TrimSpace(inline(c)))
			}
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			sep := make([]string, len(cells))
			for j := range sep {
				sep[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// collectRows gathers rows in document order without entering nested tables.
func collectRows(n *Node, rows []*Node) []*Node {
	for _, c := range n.Children {
		switch c.Kind {
		case KindTableRow:
			rows = append(rows, c)
		case KindTable, KindText:
		default:
			rows = collectRows(c, rows)
		}
	}
	return rows
}
