package generator

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/bytedance/sonic"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
)

// LocalScaffolder backs new collections from built-in templates so builds
// keep working when no remote generator is configured. Output is a schema
// document plus a REST handler stub per collection, deterministic for a
// given (collection, fields) pair.
type LocalScaffolder struct {
	handler *template.Template
}

// NewLocalScaffolder returns a ready scaffolder.
func NewLocalScaffolder() *LocalScaffolder {
	return &LocalScaffolder{
		handler: template.Must(template.New("handler").Parse(handlerStub)),
	}
}

type schemaDoc struct {
	Collection string   `json:"collection"`
	PrimaryKey string   `json:"primaryKey"`
	Fields     []string `json:"fields"`
}

// Scaffold renders the schema and handler stub for one collection.
func (s *LocalScaffolder) Scaffold(_ context.Context, collection string, model blueprint.DataModel) ([]Artifact, error) {
	if collection == "" {
		return nil, fmt.Errorf("scaffold: empty collection name")
	}

	fields := model.Fields
	if len(fields) == 0 {
		fields = []string{"id", "text"}
	}

	schema, err := sonic.ConfigStd.MarshalIndent(schemaDoc{
		Collection: collection,
		PrimaryKey: "id",
		Fields:     fields,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("scaffold %s: %w", collection, err)
	}

	var handler bytes.Buffer
	err = s.handler.Execute(&handler, map[string]interface{}{
		"Collection": collection,
		"Fields":     fields,
	})
	if err != nil {
		return nil, fmt.Errorf("scaffold %s: %w", collection, err)
	}

	return []Artifact{
		{Path: fmt.Sprintf("api/%s/schema.json", collection), Content: schema},
		{Path: fmt.Sprintf("api/%s/handler.js", collection), Content: handler.Bytes()},
	}, nil
}

// handlerStub is an in-browser REST-shaped facade over the app's persisted
// collections, matching the storage layout the runtime uses.
const handlerStub = `// Generated handler for the "{{.Collection}}" collection.
// Exposes list/get/create over the app's persisted local state.
(function () {
  'use strict';
  var NAME = '{{.Collection}}';
  var FIELDS = [{{range $i, $f := .Fields}}{{if $i}}, {{end}}'{{$f}}'{{end}}];

  function collections() {
    try {
      var raw = localStorage.getItem(window.__STATE_KEY__ || 'appforge_state');
      return raw ? (JSON.parse(raw).collections || {}) : {};
    } catch (e) {
      return {};
    }
  }

  window.__API__ = window.__API__ || {};
  window.__API__[NAME] = {
    schema: { collection: NAME, fields: FIELDS },
    list: function () { return collections()[NAME] || []; },
    get: function (id) {
      return (collections()[NAME] || []).filter(function (r) { return r.id === id; })[0] || null;
    }
  };
})();
`
