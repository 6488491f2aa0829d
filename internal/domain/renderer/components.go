package renderer

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
)

// component evaluates one tagged variant into a node. The switch is the
// closed interpreter over component kinds; the default arm keeps unknown
// kinds visible instead of failing the route.
func (r *Renderer) component(c blueprint.Component) *node {
	switch c.Type {
	case blueprint.KindText:
		return text("p", r.clean(c.Value)).class("text")

	case blueprint.KindImage:
		img := elem("img").class("image").attr("src", safeURL(c.Src))
		if c.Value != "" {
			img.attr("alt", r.clean(c.Value))
		}
		return img

	case blueprint.KindLink:
		return text("a", r.clean(c.Label)).class("link").attr("href", safeURL(c.To))

	case blueprint.KindButton:
		return r.button(c)

	case blueprint.KindList:
		return r.list(c)

	case blueprint.KindTable:
		return r.table(c)

	case blueprint.KindGrid:
		grid := elem("div").class("grid").
			attr("data-bind", "grid").
			attr("data-collection", c.Collection)
		if c.Field != "" {
			grid.attr("data-field", c.Field)
		}
		return grid

	case blueprint.KindForm:
		return r.form(c, "form")

	case blueprint.KindComposer:
		return r.form(c, "composer")

	case blueprint.KindFeed:
		return widget("feed", c.Collection, "posts")

	case blueprint.KindInbox:
		return widget("inbox", c.Collection, "messages")

	case blueprint.KindNotifications:
		return widget("notifications", c.Collection, "notifications")

	case blueprint.KindProfile:
		return widget("profile", c.Collection, "profile")

	case blueprint.KindTodo:
		return widget("todo", c.Collection, "todos")

	default:
		return text("div", fmt.Sprintf("[%s]", c.Type)).class("placeholder")
	}
}

func (r *Renderer) button(c blueprint.Component) *node {
	action := c.Action
	if action == "" {
		action = "navigate"
	}
	btn := text("button", r.clean(c.Label)).class("button").
		attr("type", "button").
		attr("data-action", action)
	if c.To != "" {
		btn.attr("data-to", safeURL(c.To))
	}
	return btn
}

// list renders static items inline and leaves the collection binding to the
// runtime, which appends live rows after the static ones.
func (r *Renderer) list(c blueprint.Component) *node {
	ul := elem("ul").class("list")
	if c.Collection != "" {
		ul.attr("data-bind", "list").attr("data-collection", c.Collection)
		if c.Field != "" {
			ul.attr("data-field", c.Field)
		}
	}
	for _, item := range c.Items {
		ul.add(text("li", r.clean(item)))
	}
	return ul
}

func (r *Renderer) table(c blueprint.Component) *node {
	tbl := elem("table").class("table")
	fields := make([]string, 0, len(c.Columns))
	if len(c.Columns) > 0 {
		head := elem("tr")
		for _, col := range c.Columns {
			header := col.Header
			if header == "" {
				header = col.Field
			}
			head.add(text("th", r.clean(header)))
			fields = append(fields, col.Field)
		}
		tbl.add(elem("thead", head))
	}
	body := elem("tbody")
	for _, row := range c.Rows {
		body.add(r.tableRow(row, fields))
	}
	tbl.add(body)
	if c.Collection != "" {
		tbl.attr("data-bind", "table").
			attr("data-collection", c.Collection).
			attr("data-columns", strings.Join(fields, ","))
	}
	return tbl
}

func (r *Renderer) tableRow(row blueprint.Record, fields []string) *node {
	tr := elem("tr")
	if len(fields) == 0 {
		fields = sortedRecordKeys(row)
	}
	for _, f := range fields {
		tr.add(text("td", r.clean(stringify(row[f]))))
	}
	return tr
}

// form renders labeled inputs per declared field. A composer with no fields
// degrades to a single textarea bound to the component's field name.
func (r *Renderer) form(c blueprint.Component, class string) *node {
	f := elem("form").class(class).attr("data-collection", c.Collection)
	if c.Redirect != "" {
		f.attr("data-redirect", safeURL(c.Redirect))
	}
	fields := c.Fields
	if len(fields) == 0 && class == "composer" {
		name := c.Field
		if name == "" {
			name = "text"
		}
		fields = []blueprint.FormField{{Name: name, Type: "textarea"}}
	}
	for _, fld := range fields {
		f.add(r.formField(fld))
	}
	submit := c.Label
	if submit == "" {
		submit = "Submit"
	}
	f.add(text("button", r.clean(submit)).class("button").attr("type", "submit"))
	return f
}

func (r *Renderer) formField(fld blueprint.FormField) *node {
	wrap := elem("div").class("field")
	if fld.Label != "" {
		wrap.add(text("label", r.clean(fld.Label)).attr("for", fld.Name))
	}
	if fld.Type == "textarea" {
		wrap.add(elem("textarea").attr("id", fld.Name).attr("name", fld.Name))
	} else {
		typ := fld.Type
		if typ == "" {
			typ = "text"
		}
		wrap.add(elem("input").attr("id", fld.Name).attr("name", fld.Name).attr("type", typ))
	}
	return wrap
}

// widget emits a container the runtime fills from a collection.
func widget(kind, collection, fallback string) *node {
	if collection == "" {
		collection = fallback
	}
	return elem("div").class(kind).
		attr("data-widget", kind).
		attr("data-collection", collection)
}

// clean strips markup from a blueprint string, leaving plain text. Output
// escaping happens at render time, so entities are unescaped here to avoid
// double encoding.
func (r *Renderer) clean(s string) string {
	return html.UnescapeString(r.policy.Sanitize(s))
}

// safeURL rejects script-scheme URLs; everything else passes through and is
// attribute-escaped at render time.
func safeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "vbscript:") {
		return "#"
	}
	return trimmed
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedRecordKeys(row blueprint.Record) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
