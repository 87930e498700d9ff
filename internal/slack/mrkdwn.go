// ABOUTME: Converts assistant markdown and inline HTML anchors into Slack mrkdwn
// ABOUTME: Walks the goldmark AST and emits Slack's link, emphasis and list syntax

package slack

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdown = goldmark.New()

	anchorOpen  = regexp.MustCompile(`(?is)^<a\s[^>]*?href\s*=\s*["']?([^"'\s>]+)["']?[^>]*>$`)
	anchorClose = regexp.MustCompile(`(?i)^</a\s*>$`)
	anchorBlock = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']?([^"'\s>]+)["']?[^>]*>(.*?)</a\s*>`)
)

// ToMrkdwn renders markdown, including inline <a href> anchors, as Slack mrkdwn.
func ToMrkdwn(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	r := &mrkdwnWriter{source: source}
	_ = ast.Walk(doc, r.walk)
	return strings.TrimRight(r.out.String(), " \n")
}

type mrkdwnWriter struct {
	source []byte
	out    strings.Builder
}

func (w *mrkdwnWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Paragraph:
		if !entering {
			w.out.WriteString("\n\n")
		}

	case *ast.Heading:
		if entering {
			w.out.WriteString("*")
		} else {
			w.out.WriteString("*\n\n")
		}

	case *ast.Blockquote:
		if entering {
			w.out.WriteString("> ")
		}

	case *ast.ListItem:
		if entering {
			w.out.WriteString("• ")
		} else {
			w.out.WriteString("\n")
		}

	case *ast.List:
		if !entering {
			w.out.WriteString("\n")
		}

	case *ast.ThematicBreak:
		if entering {
			w.out.WriteString("---\n\n")
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			w.out.WriteString("```\n")
			w.writeLines(n)
			w.out.WriteString("```\n\n")
		}
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		if entering {
			var b strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(w.source))
			}
			if node.HasClosure() {
				b.Write(node.ClosureLine.Value(w.source))
			}
			w.out.WriteString(anchorBlock.ReplaceAllString(b.String(), "<$1|$2>"))
			w.out.WriteString("\n")
		}
		return ast.WalkSkipChildren, nil

	case *ast.Text:
		if entering {
			w.out.Write(node.Segment.Value(w.source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.out.WriteString("\n")
			}
		}

	case *ast.String:
		if entering {
			w.out.Write(node.Value)
		}

	case *ast.Emphasis:
		mark := "_"
		if node.Level >= 2 {
			mark = "*"
		}
		w.out.WriteString(mark)

	case *ast.CodeSpan:
		w.out.WriteString("`")

	case *ast.Link:
		if entering {
			w.out.WriteString("<" + string(node.Destination) + "|")
		} else {
			w.out.WriteString(">")
		}

	case *ast.Image:
		if entering {
			w.out.WriteString("<" + string(node.Destination) + "|")
		} else {
			w.out.WriteString(">")
		}

	case *ast.AutoLink:
		if entering {
			w.out.WriteString("<" + string(node.URL(w.source)) + ">")
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			var b strings.Builder
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				b.Write(seg.Value(w.source))
			}
			raw := b.String()
			switch {
			case anchorOpen.MatchString(raw):
				w.out.WriteString("<" + anchorOpen.FindStringSubmatch(raw)[1] + "|")
			case anchorClose.MatchString(raw):
				w.out.WriteString(">")
			default:
				w.out.WriteString(raw)
			}
		}
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (w *mrkdwnWriter) writeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.out.Write(seg.Value(w.source))
	}
}
