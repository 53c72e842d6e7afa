package telegram

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

const markdownExtensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock |
	parser.Strikethrough | parser.FencedCode | parser.Autolink

// renderEntities turns LLM-flavoured markdown into plain text plus Telegram
// message entities. Entity offsets are counted in UTF-16 code units.
func renderEntities(md string) (string, []models.MessageEntity) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	doc := parser.NewWithExtensions(markdownExtensions).Parse([]byte(md))

	r := &entityRenderer{}
	r.node(doc)
	sort.SliceStable(r.entities, func(i, j int) bool {
		if r.entities[i].Offset != r.entities[j].Offset {
			return r.entities[i].Offset < r.entities[j].Offset
		}
		return r.entities[i].Length > r.entities[j].Length
	})
	return strings.TrimRight(r.text.String(), "\n"), r.entities
}

type entityRenderer struct {
	text     strings.Builder
	pos      int // utf16 offset of the end of text
	entities []models.MessageEntity
}

func (r *entityRenderer) write(s string) {
	r.text.WriteString(s)
	r.pos += len(utf16.Encode([]rune(s)))
}

// mark records an entity spanning from start to the current position.
func (r *entityRenderer) mark(typ models.MessageEntityType, start int, url, lang string) {
	if r.pos <= start {
		return
	}
	r.entities = append(r.entities, models.MessageEntity{
		Type:     typ,
		Offset:   start,
		Length:   r.pos - start,
		URL:      url,
		Language: lang,
	})
}

func (r *entityRenderer) children(n ast.Node) {
	for _, c := range n.GetChildren() {
		r.node(c)
	}
}

// styled renders n's children inside one entity.
func (r *entityRenderer) styled(n ast.Node, typ models.MessageEntityType) {
	start := r.pos
	r.children(n)
	r.mark(typ, start, "", "")
}

// blockEnd separates block n from the next sibling.
func (r *entityRenderer) blockEnd(n ast.Node) {
	if ast.GetNextNode(n) == nil {
		return
	}
	if _, inItem := n.GetParent().(*ast.ListItem); inItem {
		r.write("\n")
		return
	}
	r.write("\n\n")
}

func (r *entityRenderer) node(n ast.Node) {
	switch v := n.(type) {
	case *ast.Document:
		r.children(n)
	case *ast.Paragraph:
		r.children(n)
		r.blockEnd(n)
	case *ast.Heading:
		r.styled(n, models.MessageEntityTypeBold)
		r.blockEnd(n)
	case *ast.BlockQuote:
		r.styled(n, models.MessageEntityTypeBlockquote)
		r.blockEnd(n)
	case *ast.List:
		r.list(v)
		r.blockEnd(n)
	case *ast.Strong:
		r.styled(n, models.MessageEntityTypeBold)
	case *ast.Emph:
		r.styled(n, models.MessageEntityTypeItalic)
	case *ast.Del:
		r.styled(n, models.MessageEntityTypeStrikethrough)
	case *ast.Code:
		start := r.pos
		r.write(string(v.Literal))
		r.mark(models.MessageEntityTypeCode, start, "", "")
	case *ast.CodeBlock:
		start := r.pos
		r.write(strings.TrimRight(string(v.Literal), "\n"))
		lang := ""
		if fields := strings.Fields(string(v.Info)); len(fields) > 0 {
			lang = fields[0]
		}
		r.mark(models.MessageEntityTypePre, start, "", lang)
		r.blockEnd(n)
	case *ast.Link:
		start := r.pos
		r.children(n)
		if r.pos == start {
			r.write(string(v.Destination))
		}
		r.mark(models.MessageEntityTypeTextLink, start, string(v.Destination), "")
	case *ast.Text:
		r.write(string(v.Literal))
	case *ast.Softbreak, *ast.Hardbreak:
		r.write("\n")
	case *ast.HorizontalRule:
		r.write("----------")
		r.blockEnd(n)
	case *ast.HTMLBlock:
		r.write(string(v.Literal))
		r.blockEnd(n)
	case *ast.HTMLSpan:
		r.write(string(v.Literal))
	default:
		if len(n.GetChildren()) > 0 {
			r.children(n)
			return
		}
		if leaf := n.AsLeaf(); leaf != nil {
			r.write(string(leaf.Literal))
		}
	}
}

func (r *entityRenderer) list(l *ast.List) {
	ordered := l.ListFlags&ast.ListTypeOrdered != 0
	index := max(l.Start, 1)

	items := l.GetChildren()
	for i, child := range items {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		if ordered {
			r.write(strconv.Itoa(index) + ". ")
			index++
		} else {
			r.write("- ")
		}

		parts := item.GetChildren()
		for j, part := range parts {
			if p, ok := part.(*ast.Paragraph); ok {
				r.children(p)
			} else {
				r.node(part)
			}
			if j < len(parts)-1 {
				r.write("\n")
			}
		}
		if i < len(items)-1 {
			r.write("\n")
		}
	}
}
