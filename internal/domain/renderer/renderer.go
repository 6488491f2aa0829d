package renderer

import (
	"fmt"
	"html"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
)

// File is one artifact in a rendered bundle.
type File struct {
	Path    string
	Content []byte
}

// Bundle is the complete static output for one blueprint version. Files are
// in a fixed order: index.html, styles.css, app.js, blueprint.json.
type Bundle struct {
	AppName string
	Files   []File
}

// Find returns the file with the given path.
func (b *Bundle) Find(path string) (File, bool) {
	for _, f := range b.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// Options tunes a single render.
type Options struct {
	// StateKey namespaces the app's localStorage state. Defaults to a key
	// derived from the app name so separate sessions do not share records.
	StateKey string
}

// Renderer evaluates blueprints into SPA bundles. Rendering is a pure
// function of (blueprint, options); the same inputs always produce the same
// bytes. Safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
}

// New returns a Renderer with a strict sanitization policy: markup in
// blueprint strings is stripped, never executed.
func New() *Renderer {
	return &Renderer{policy: bluemonday.StrictPolicy()}
}

// Render evaluates the blueprint into a four-file bundle.
func (r *Renderer) Render(bp blueprint.Blueprint, opts Options) (*Bundle, error) {
	name := bp.AppName
	if name == "" {
		name = "Generated App"
	}
	stateKey := opts.StateKey
	if stateKey == "" {
		stateKey = "appforge_state_" + slug(name)
	}

	raw, err := sonic.ConfigStd.Marshal(bp)
	if err != nil {
		return nil, fmt.Errorf("encode blueprint: %w", err)
	}

	return &Bundle{
		AppName: name,
		Files: []File{
			{Path: "index.html", Content: []byte(r.indexHTML(bp, name))},
			{Path: "styles.css", Content: []byte(stylesheet(bp.UITheme == blueprint.ThemeDark))},
			{Path: "app.js", Content: []byte(appJS(raw, stateKey))},
			{Path: "blueprint.json", Content: raw},
		},
	}, nil
}

// indexHTML renders the shell: app header, route nav, the empty mount point,
// and one <template> per route holding its evaluated component tree.
func (r *Renderer) indexHTML(bp blueprint.Blueprint, name string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(r.clean(name)))
	b.WriteString("<link rel=\"stylesheet\" href=\"styles.css\">\n")
	b.WriteString("</head>\n<body>\n")

	b.WriteString("<header>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(r.clean(name)))
	b.WriteString("<nav class=\"nav\">")
	for _, route := range bp.Routes {
		title := route.Title
		if title == "" {
			title = routeName(route.Path)
		}
		fmt.Fprintf(&b, "<a href=\"%s\">%s</a>",
			html.EscapeString(route.Path), html.EscapeString(r.clean(title)))
	}
	b.WriteString("</nav>\n</header>\n")

	b.WriteString("<div id=\"app\"></div>\n")

	for _, route := range bp.Routes {
		fmt.Fprintf(&b, "<template data-route=\"%s\">", html.EscapeString(route.Path))
		for _, c := range route.Components {
			r.component(c).render(&b)
		}
		b.WriteString("</template>\n")
	}

	b.WriteString("<script src=\"app.js\"></script>\n</body>\n</html>\n")
	return b.String()
}

// appJS prepends the app-specific globals to the fixed runtime. The closing
// script-tag sequence is broken up so the blueprint payload cannot terminate
// the surrounding element when served inline.
func appJS(blueprintJSON []byte, stateKey string) string {
	payload := strings.ReplaceAll(string(blueprintJSON), "</", "<\\/")
	var b strings.Builder
	b.WriteString("window.__BLUEPRINT__ = ")
	b.WriteString(payload)
	b.WriteString(";\nwindow.__STATE_KEY__ = ")
	b.WriteString(jsString(stateKey))
	b.WriteString(";\n")
	b.WriteString(runtimeJS)
	return b.String()
}

func jsString(s string) string {
	out, err := sonic.ConfigStd.Marshal(s)
	if err != nil {
		return `"appforge_state"`
	}
	return string(out)
}

// routeName derives a nav label from a path: "#/about-us" becomes "About us".
func routeName(path string) string {
	name := strings.Trim(strings.TrimPrefix(path, "#/"), "/")
	if name == "" {
		return "Home"
	}
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	runes := []rune(name)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// slug normalizes an app name for use in storage keys and directory names.
func slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "app"
	}
	return out
}

// Slug exposes the app-name normalization used for bundle directories.
func Slug(name string) string {
	if name == "" {
		return "app"
	}
	return slug(name)
}
