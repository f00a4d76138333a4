package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const codeStyleName = "monokai"

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// RenderMarkdown renders a settled reply for the terminal. Paragraphs are
// wrapped to width when width is positive. Fenced code is highlighted only
// when styles emit color.
func RenderMarkdown(content string, styles *Styles, width int) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	src := []byte(content)
	r := &mdRenderer{src: src, styles: styles, width: width}
	doc := markdownParser.Parse(text.NewReader(src))
	return r.blocks(doc, "\n\n")
}

type mdRenderer struct {
	src    []byte
	styles *Styles
	width  int
}

func (r *mdRenderer) blocks(parent ast.Node, sep string) string {
	var parts []string
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *mdRenderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Heading:
		return r.styles.Header.Render(r.inline(n))
	case *ast.Paragraph:
		return r.wrap(r.inline(n))
	case *ast.TextBlock:
		return r.inline(n)
	case *ast.List:
		return r.list(n)
	case *ast.Blockquote:
		bar := r.styles.Muted.Render("│ ")
		return prefixLines(r.blocks(n, "\n\n"), bar, bar)
	case *ast.FencedCodeBlock:
		return r.code(r.lines(n), string(n.Language(r.src)))
	case *ast.CodeBlock:
		return r.code(r.lines(n), "")
	case *ast.ThematicBreak:
		w := 40
		if r.width > 0 {
			w = min(r.width, w)
		}
		return r.styles.Muted.Render(strings.Repeat("─", w))
	case *ast.HTMLBlock:
		return strings.TrimRight(r.lines(n), "\n")
	case *east.Table:
		return r.table(n)
	}
	if n.Type() == ast.TypeBlock && n.HasChildren() {
		return r.blocks(n, "\n\n")
	}
	return ""
}

func (r *mdRenderer) list(n *ast.List) string {
	var items []string
	num := n.Start
	if num == 0 {
		num = 1
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "• "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		sep := "\n"
		if !n.IsTight {
			sep = "\n\n"
		}
		body := r.blocks(c, sep)
		items = append(items, prefixLines(body, marker, strings.Repeat(" ", ansi.StringWidth(marker))))
	}
	if n.IsTight {
		return strings.Join(items, "\n")
	}
	return strings.Join(items, "\n\n")
}

func (r *mdRenderer) table(n *east.Table) string {
	var rows []string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, r.inline(cell))
		}
		line := strings.Join(cells, " │ ")
		if _, header := row.(*east.TableHeader); header {
			line = r.styles.Bold.Render(line)
		}
		rows = append(rows, line)
	}
	return strings.Join(rows, "\n")
}

func (r *mdRenderer) inline(parent ast.Node) string {
	var b strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(r.src))
			switch {
			case c.HardLineBreak():
				b.WriteString("\n")
			case c.SoftLineBreak():
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan:
			b.WriteString(r.styles.Code.Render(r.inline(c)))
		case *ast.Emphasis:
			if c.Level >= 2 {
				b.WriteString(r.styles.Bold.Render(r.inline(c)))
			} else {
				b.WriteString(r.styles.Italic.Render(r.inline(c)))
			}
		case *ast.Link:
			label := r.inline(c)
			dest := string(c.Destination)
			b.WriteString(label)
			if dest != "" && dest != label {
				b.WriteString(" " + r.styles.Muted.Render("("+dest+")"))
			}
		case *ast.AutoLink:
			b.Write(c.URL(r.src))
		case *ast.Image:
			b.WriteString(r.styles.Muted.Render("[image: " + r.inline(c) + "]"))
		case *ast.RawHTML:
			for i := 0; i < c.Segments.Len(); i++ {
				seg := c.Segments.At(i)
				b.Write(seg.Value(r.src))
			}
		case *east.TaskCheckBox:
			if c.IsChecked {
				b.WriteString("[x] ")
			} else {
				b.WriteString("[ ] ")
			}
		default:
			b.WriteString(r.inline(c))
		}
	}
	return b.String()
}

func (r *mdRenderer) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.src))
	}
	return b.String()
}

func (r *mdRenderer) code(src, lang string) string {
	src = strings.TrimRight(src, "\n")
	if r.styles.Color() {
		src = highlightCode(src, lang)
	}
	return prefixLines(src, "  ", "  ")
}

func (r *mdRenderer) wrap(s string) string {
	if r.width <= 0 {
		return s
	}
	return ansi.Wordwrap(s, r.width, "")
}

// highlightCode colors src for a 256 color terminal. Unknown languages are
// guessed from the content; src is returned unchanged when nothing matches.
func highlightCode(src, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		return src
	}
	style := chromastyles.Get(codeStyleName)
	if style == nil {
		style = chromastyles.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return src
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, style, it); err != nil {
		return src
	}
	return strings.TrimRight(b.String(), "\n")
}

func prefixLines(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = first + line
		} else if line != "" {
			lines[i] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}
