package blueprint

import (
	"fmt"
	"sort"
)

// Conflict records a structurally incompatible delta field that was
// recovered by preferring the delta value. Conflicts are logged by the
// caller, never fatal.
type Conflict struct {
	Path   string
	Reason string
}

// Report captures merge side effects. NewCollections lists every distinct
// collection name introduced by the delta; the build orchestrator consumes
// it to decide whether backend scaffolding is required. The report is not
// stored on the blueprint.
type Report struct {
	NewCollections []string
	Conflicts      []Conflict
}

func (r *Report) addCollection(seen map[string]bool, name string) {
	if name == "" || seen[name] {
		return
	}
	seen[name] = true
	r.NewCollections = append(r.NewCollections, name)
}

func (r *Report) addConflict(path, reason string) {
	r.Conflicts = append(r.Conflicts, Conflict{Path: path, Reason: reason})
}

// Merge folds delta into base and returns the result with a side-effect
// report. It is pure and deterministic: base is never mutated, and equal
// inputs always produce equal outputs.
//
// Rules, applied recursively:
//   - scalars: delta value replaces base when present, absent leaves base
//   - maps (dataModels, sampleData): merged key-wise, recursing on shared keys
//   - identity-bearing arrays (routes by path, components by their identity
//     field): union preserving base order, delta-only items appended in delta
//     order; same identity with different content merges in place; a type
//     mismatch at the same identity slot replaces and records a conflict
//   - arrays without identity (rows, items): de-duplicated set union by
//     structural equality
func Merge(base Blueprint, delta Delta) (Blueprint, *Report) {
	out := base.Clone()
	report := &Report{}
	seen := map[string]bool{}

	if delta.AppName != nil && *delta.AppName != "" {
		out.AppName = *delta.AppName
	}
	if delta.UITheme != nil && *delta.UITheme != "" {
		out.UITheme = *delta.UITheme
	}

	mergeDataModels(&out, base, delta, report, seen)
	mergeSampleData(&out, base, delta, report, seen)
	mergeRoutes(&out, delta, report)

	// Components may introduce a collection by reference alone; those are
	// creatable on first write but still need scaffolding.
	for _, r := range delta.Routes {
		for _, c := range r.Components {
			if c.Collection != "" && !base.HasCollection(c.Collection) && !out.HasCollection(c.Collection) {
				report.addCollection(seen, c.Collection)
			}
		}
	}

	return out, report
}

func mergeDataModels(out *Blueprint, base Blueprint, delta Delta, report *Report, seen map[string]bool) {
	if len(delta.DataModels) == 0 {
		return
	}
	if out.DataModels == nil {
		out.DataModels = map[string]DataModel{}
	}
	for _, name := range sortedModelKeys(delta.DataModels) {
		dm := delta.DataModels[name]
		if existing, ok := out.DataModels[name]; ok {
			out.DataModels[name] = DataModel{Fields: unionStrings(existing.Fields, dm.Fields)}
			continue
		}
		if !base.HasCollection(name) {
			report.addCollection(seen, name)
		}
		out.DataModels[name] = DataModel{Fields: append([]string(nil), dm.Fields...)}
	}
}

func mergeSampleData(out *Blueprint, base Blueprint, delta Delta, report *Report, seen map[string]bool) {
	if len(delta.SampleData) == 0 {
		return
	}
	if out.SampleData == nil {
		out.SampleData = map[string][]Record{}
	}
	for _, name := range sortedDataKeys(delta.SampleData) {
		rows := delta.SampleData[name]
		if existing, ok := out.SampleData[name]; ok {
			out.SampleData[name] = unionRecords(existing, rows)
			continue
		}
		if !base.HasCollection(name) {
			report.addCollection(seen, name)
		}
		out.SampleData[name] = cloneRecords(rows)
	}
}

func mergeRoutes(out *Blueprint, delta Delta, report *Report) {
	for _, dr := range delta.Routes {
		idx := -1
		for i, br := range out.Routes {
			if br.Path == dr.Path {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Routes = append(out.Routes, dr.Clone())
			continue
		}

		merged := out.Routes[idx]
		if dr.Title != "" {
			merged.Title = dr.Title
		}
		merged.Components = mergeComponents(merged.Components, dr.Components, report, dr.Path)
		out.Routes[idx] = merged
	}
}

// mergeComponents unions delta components into base components. Identity is
// the kind-specific identity field (text value, image src, button label,
// bound collection, or the kind itself for singleton widgets); items with no
// natural identity fall back to structural equality.
func mergeComponents(base, delta []Component, report *Report, routePath string) []Component {
	out := append([]Component(nil), base...)

	for _, dc := range delta {
		key := dc.identityKey()

		if key == "" {
			// No identity: plain de-duplicated union
			if componentIndexByEquality(out, dc) < 0 {
				out = append(out, dc.Clone())
			}
			continue
		}

		idx := -1
		for i, bc := range out {
			if bc.identityKey() == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, dc.Clone())
			continue
		}

		existing := out[idx]
		if existing.Type != dc.Type {
			// Type determines which other fields are meaningful, so a
			// mismatch at the same identity slot is a replace, not a merge.
			report.addConflict(
				fmt.Sprintf("routes[%s].components[%s]", routePath, key),
				fmt.Sprintf("type mismatch: %q replaced by %q", existing.Type, dc.Type),
			)
			out[idx] = dc.Clone()
			continue
		}
		if canonical(existing) == canonical(dc) {
			continue // identical item, not duplicated
		}
		out[idx] = mergeComponent(existing, dc)
	}

	return out
}

func mergeComponent(base, delta Component) Component {
	out := base.Clone()

	if delta.Value != "" {
		out.Value = delta.Value
	}
	if delta.Src != "" {
		out.Src = delta.Src
	}
	if delta.To != "" {
		out.To = delta.To
	}
	if delta.Label != "" {
		out.Label = delta.Label
	}
	if delta.Action != "" {
		out.Action = delta.Action
	}
	if delta.Collection != "" {
		out.Collection = delta.Collection
	}
	if delta.Field != "" {
		out.Field = delta.Field
	}
	if delta.Redirect != "" {
		out.Redirect = delta.Redirect
	}

	out.Items = unionStrings(out.Items, delta.Items)
	out.Columns = unionColumns(out.Columns, delta.Columns)
	out.Fields = unionFormFields(out.Fields, delta.Fields)
	out.Rows = unionRecords(out.Rows, delta.Rows)

	return out
}

func componentIndexByEquality(list []Component, c Component) int {
	key := canonical(c)
	for i, e := range list {
		if canonical(e) == key {
			return i
		}
	}
	return -1
}

// identityKey returns the value that identifies this component within a
// route, or "" when the kind has no natural identity. The key deliberately
// excludes the type so a kind change on the same identity is detectable.
func (c Component) identityKey() string {
	switch c.Type {
	case KindText:
		return c.Value
	case KindImage:
		return c.Src
	case KindLink, KindButton:
		return c.Label
	case KindList, KindTable, KindGrid, KindForm, KindComposer:
		return c.Collection
	case KindInbox, KindNotifications, KindProfile, KindFeed, KindTodo:
		return c.Type
	default:
		return ""
	}
}

func unionStrings(base, delta []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, s := range delta {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionColumns(base, delta []Column) []Column {
	out := append([]Column(nil), base...)
	for _, dc := range delta {
		idx := -1
		for i, bc := range out {
			if bc.Field == dc.Field {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, dc)
			continue
		}
		if dc.Header != "" {
			out[idx].Header = dc.Header
		}
	}
	return out
}

func unionFormFields(base, delta []FormField) []FormField {
	out := append([]FormField(nil), base...)
	for _, df := range delta {
		idx := -1
		for i, bf := range out {
			if bf.Name == df.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, df)
			continue
		}
		if df.Label != "" {
			out[idx].Label = df.Label
		}
		if df.Type != "" {
			out[idx].Type = df.Type
		}
	}
	return out
}

func unionRecords(base, delta []Record) []Record {
	out := cloneRecords(base)
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		seen[canonical(r)] = true
	}
	for _, r := range delta {
		key := canonical(r)
		if !seen[key] {
			seen[key] = true
			out = append(out, cloneValue(r).(Record))
		}
	}
	return out
}

func sortedModelKeys(m map[string]DataModel) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDataKeys(m map[string][]Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
