// Package renderer turns a blueprint into a navigable single-page
// application with no compilation step.
//
// Each route's component tree is evaluated server-side into an HTML
// <template> block; a small fixed client runtime owns the hash router,
// resolves data bindings against persisted local state, and implements the
// two primitive actions (navigate, submit). Unknown component kinds render
// as labeled placeholders and missing collections bind to empty result
// sets; neither is fatal to the rest of the route.
package renderer
