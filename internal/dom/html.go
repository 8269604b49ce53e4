package dom

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/uihost/internal/layout"
)

var styleValue = regexp.MustCompile(`^[0-9a-z.,%() -]+$`)

// snapshotPolicy admits the markup RenderHTML emits and nothing else
func snapshotPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div")
	p.AllowDataAttributes()
	p.AllowStyles("display", "flex-direction", "width", "height", "background-color",
		"padding", "margin", "gap").Matching(styleValue).OnElements("div")
	return p
}

// RenderHTML renders the tree as nested divs. Each div carries data-id with
// the node's stable key and data-kind with its kernel kind.
func (d *Document) RenderHTML() (string, error) {
	root, err := d.htmlNode(d.root)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return snapshotPolicy().Sanitize(buf.String()), nil
}

func (d *Document) htmlNode(key NodeKey) (*html.Node, error) {
	e, err := d.element(key)
	if err != nil {
		return nil, err
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "data-id", Val: key.String()},
			{Key: "data-kind", Val: e.kind.String()},
		},
	}
	if css := inlineStyle(e); css != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: css})
	}
	for _, c := range d.children[key] {
		child, err := d.htmlNode(c)
		if err != nil {
			return nil, err
		}
		n.AppendChild(child)
	}
	return n, nil
}

func inlineStyle(e *element) string {
	var parts []string
	add := func(prop, val string) {
		parts = append(parts, prop+": "+val)
	}
	if e.kind.Element() == "container" {
		add("display", "flex")
		if e.kind == Row {
			add("flex-direction", "row")
		} else {
			add("flex-direction", "column")
		}
	}
	if v, ok := cssLength(e.style.Width); ok {
		add("width", v)
	}
	if v, ok := cssLength(e.style.Height); ok {
		add("height", v)
	}
	if bg := e.style.Background; bg != nil {
		add("background-color", fmt.Sprintf("rgba(%d, %d, %d, %s)", bg.R, bg.G, bg.B, num(bg.A)))
	}
	if e.style.Padding != 0 {
		add("padding", num(e.style.Padding)+"px")
	}
	if e.style.Margin != 0 {
		add("margin", num(e.style.Margin)+"px")
	}
	if e.style.Spacing != 0 {
		add("gap", num(e.style.Spacing)+"px")
	}
	return strings.Join(parts, "; ")
}

func cssLength(v layout.Value) (string, bool) {
	switch v.Unit {
	case layout.Points:
		return num(v.Value) + "px", true
	case layout.Percent:
		return num(v.Value) + "%", true
	default:
		return "", false
	}
}

func num(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
