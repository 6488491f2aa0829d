package blueprint

// Theme is a UI style token applied to the generated stylesheet.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Component kinds understood by the renderer. Unknown kinds degrade to a
// labeled placeholder, never an error.
const (
	KindText          = "text"
	KindImage         = "image"
	KindLink          = "link"
	KindButton        = "button"
	KindList          = "list"
	KindTable         = "table"
	KindGrid          = "grid"
	KindForm          = "form"
	KindComposer      = "composer"
	KindInbox         = "inbox"
	KindNotifications = "notifications"
	KindProfile       = "profile"
	KindFeed          = "feed"
	KindTodo          = "todo"
)

// Record is one runtime data row in a named collection.
type Record map[string]interface{}

// DataModel is a minimal schema: the ordered field list of a collection.
type DataModel struct {
	Fields []string `json:"fields"`
}

// Column describes one table column binding.
type Column struct {
	Field  string `json:"field"`
	Header string `json:"header,omitempty"`
}

// FormField describes one input in a form or composer.
type FormField struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Type  string `json:"type,omitempty"` // text, textarea, number, email, file...
}

// Component is a tagged variant over UI element kinds. Type selects which
// of the remaining fields are meaningful.
type Component struct {
	Type string `json:"type"`

	// text
	Value string `json:"value,omitempty"`

	// image
	Src string `json:"src,omitempty"`

	// link / button
	To     string `json:"to,omitempty"`
	Label  string `json:"label,omitempty"`
	Action string `json:"action,omitempty"` // navigate | submit

	// data-bound kinds (list, table, grid, form, composer)
	Collection string `json:"collection,omitempty"`
	Field      string `json:"field,omitempty"`

	// list
	Items []string `json:"items,omitempty"`

	// table
	Columns []Column `json:"columns,omitempty"`
	Rows    []Record `json:"rows,omitempty"`

	// form / composer
	Fields   []FormField `json:"fields,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// Route is a path-keyed screen: an ordered component list. Path uses the
// canonical "#/..." form and is unique within a Blueprint.
type Route struct {
	Path       string      `json:"path"`
	Title      string      `json:"title,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Blueprint is the full description of one application version.
type Blueprint struct {
	AppName    string               `json:"appName,omitempty"`
	UITheme    Theme                `json:"uiTheme,omitempty"`
	Routes     []Route              `json:"routes,omitempty"`
	DataModels map[string]DataModel `json:"dataModels,omitempty"`
	SampleData map[string][]Record  `json:"sampleData,omitempty"`
}

// New returns an empty default Blueprint.
func New() Blueprint {
	return Blueprint{
		UITheme:    ThemeLight,
		DataModels: map[string]DataModel{},
		SampleData: map[string][]Record{},
	}
}

// DefaultRoute returns the landing view: the first route, or false when the
// blueprint has none.
func (b Blueprint) DefaultRoute() (Route, bool) {
	if len(b.Routes) == 0 {
		return Route{}, false
	}
	return b.Routes[0], true
}

// FindRoute returns the route with the given path.
func (b Blueprint) FindRoute(path string) (Route, bool) {
	for _, r := range b.Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// ReferencedCollections returns every collection name referenced by a
// component on any route, in first-reference order.
func (b Blueprint) ReferencedCollections() []string {
	var names []string
	seen := map[string]bool{}
	for _, r := range b.Routes {
		for _, c := range r.Components {
			if c.Collection != "" && !seen[c.Collection] {
				seen[c.Collection] = true
				names = append(names, c.Collection)
			}
		}
	}
	return names
}

// HasCollection reports whether name is declared in DataModels or SampleData.
func (b Blueprint) HasCollection(name string) bool {
	if _, ok := b.DataModels[name]; ok {
		return true
	}
	_, ok := b.SampleData[name]
	return ok
}

// Clone returns a deep copy; Merge never mutates its inputs.
func (b Blueprint) Clone() Blueprint {
	out := Blueprint{
		AppName: b.AppName,
		UITheme: b.UITheme,
	}
	if b.Routes != nil {
		out.Routes = make([]Route, len(b.Routes))
		for i, r := range b.Routes {
			out.Routes[i] = r.Clone()
		}
	}
	if b.DataModels != nil {
		out.DataModels = make(map[string]DataModel, len(b.DataModels))
		for k, v := range b.DataModels {
			out.DataModels[k] = DataModel{Fields: append([]string(nil), v.Fields...)}
		}
	}
	if b.SampleData != nil {
		out.SampleData = make(map[string][]Record, len(b.SampleData))
		for k, rows := range b.SampleData {
			out.SampleData[k] = cloneRecords(rows)
		}
	}
	return out
}

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	out := Route{Path: r.Path, Title: r.Title}
	if r.Components != nil {
		out.Components = make([]Component, len(r.Components))
		for i, c := range r.Components {
			out.Components[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the component.
func (c Component) Clone() Component {
	out := c
	out.Items = append([]string(nil), c.Items...)
	out.Columns = append([]Column(nil), c.Columns...)
	out.Fields = append([]FormField(nil), c.Fields...)
	if c.Rows != nil {
		out.Rows = cloneRecords(c.Rows)
	}
	return out
}

func cloneRecords(rows []Record) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = cloneValue(row).(Record)
	}
	return out
}

// cloneValue deep-copies JSON-shaped values.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Record:
		out := make(Record, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
