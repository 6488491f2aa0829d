package generator

import (
	"context"
	"errors"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
)

// ErrUnavailable reports that the collaborator cannot serve requests right
// now (no address configured, circuit open, service down). Builds treat it
// as a failure of the current build only, never of the session.
var ErrUnavailable = errors.New("generator: unavailable")

// Artifact is one file a scaffolder contributes to a build.
type Artifact struct {
	Path    string
	Content []byte
}

// Proposer turns a free-text instruction into a structured blueprint delta.
// An empty delta is a valid answer: the instruction required no change.
type Proposer interface {
	Propose(ctx context.Context, bp blueprint.Blueprint, prompt string) (blueprint.Delta, error)
}

// Scaffolder produces the backing artifacts for a newly introduced
// collection. Called once per collection, on first reference only.
type Scaffolder interface {
	Scaffold(ctx context.Context, collection string, model blueprint.DataModel) ([]Artifact, error)
}
