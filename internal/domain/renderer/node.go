package renderer

import (
	"html"
	"sort"
	"strings"
)

// node is a minimal HTML element tree. Attributes render in sorted order so
// identical blueprints always produce byte-identical markup.
type node struct {
	tag      string
	attrs    map[string]string
	text     string
	children []*node
}

func elem(tag string, children ...*node) *node {
	return &node{tag: tag, children: children}
}

func text(tag, content string) *node {
	return &node{tag: tag, text: content}
}

func (n *node) attr(key, value string) *node {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[key] = value
	return n
}

func (n *node) class(value string) *node {
	return n.attr("class", value)
}

func (n *node) add(children ...*node) *node {
	n.children = append(n.children, children...)
	return n
}

// voidTags never take a closing tag.
var voidTags = map[string]bool{
	"img":   true,
	"input": true,
	"br":    true,
	"hr":    true,
}

func (n *node) render(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(n.tag)
	if len(n.attrs) > 0 {
		keys := make([]string, 0, len(n.attrs))
		for k := range n.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(n.attrs[k]))
			b.WriteByte('"')
		}
	}
	b.WriteByte('>')
	if voidTags[n.tag] {
		return
	}
	if n.text != "" {
		b.WriteString(html.EscapeString(n.text))
	}
	for _, c := range n.children {
		c.render(b)
	}
	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
}

func (n *node) String() string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}
