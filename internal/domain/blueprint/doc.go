// Package blueprint defines the declarative application description and the
// deep-merge engine that folds partial revisions ("deltas") into it.
//
// A Blueprint describes one application version: routes, the components on
// each route, minimal data model schemas, and sample data used to seed
// runtime state. Deltas are partial blueprints; Merge composes them
// deterministically so iterative edits never clobber earlier ones.
package blueprint
