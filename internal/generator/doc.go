// Package generator defines the narrow contracts for the external build
// collaborators (the proposer that turns a free-text instruction into a
// blueprint delta, and the scaffolder that backs a new collection with
// artifacts) plus two implementations: an HTTP client for a remote generator
// service and a template-based local scaffolder that keeps builds working
// when no remote generator is configured.
package generator
