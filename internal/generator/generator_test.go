package generator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
)

func TestLocalScaffolderArtifacts(t *testing.T) {
	s := NewLocalScaffolder()
	artifacts, err := s.Scaffold(context.Background(), "posts", blueprint.DataModel{
		Fields: []string{"id", "title", "body"},
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, "api/posts/schema.json", artifacts[0].Path)
	assert.Equal(t, "api/posts/handler.js", artifacts[1].Path)

	schema := string(artifacts[0].Content)
	assert.Contains(t, schema, `"collection": "posts"`)
	assert.Contains(t, schema, `"title"`)

	handler := string(artifacts[1].Content)
	assert.Contains(t, handler, `var NAME = 'posts';`)
	assert.Contains(t, handler, `'id', 'title', 'body'`)
}

func TestLocalScaffolderDefaultsFields(t *testing.T) {
	s := NewLocalScaffolder()
	artifacts, err := s.Scaffold(context.Background(), "notes", blueprint.DataModel{})
	require.NoError(t, err)
	assert.Contains(t, string(artifacts[0].Content), `"id"`)
	assert.Contains(t, string(artifacts[0].Content), `"text"`)
}

func TestLocalScaffolderDeterministic(t *testing.T) {
	s := NewLocalScaffolder()
	model := blueprint.DataModel{Fields: []string{"id", "name"}}
	a, err := s.Scaffold(context.Background(), "users", model)
	require.NoError(t, err)
	b, err := s.Scaffold(context.Background(), "users", model)
	require.NoError(t, err)
	for i := range a {
		assert.Equal(t, string(a[i].Content), string(b[i].Content))
	}
}

func TestLocalScaffolderRejectsEmptyName(t *testing.T) {
	_, err := NewLocalScaffolder().Scaffold(context.Background(), "", blueprint.DataModel{})
	assert.Error(t, err)
}

func testClient(t *testing.T, address string) *Client {
	t.Helper()
	return NewClient(config.GeneratorConfig{
		Address: address,
		Timeout: 5 * time.Second,
	}, logging.NewNop())
}

func TestClientProposes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/propose", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"delta":{"appName":"Todo","routes":[{"path":"#/","components":[{"type":"text","value":"hi"}]}]}}`))
	}))
	defer srv.Close()

	delta, err := testClient(t, srv.URL).Propose(context.Background(), blueprint.New(), "make a todo app")
	require.NoError(t, err)
	require.NotNil(t, delta.AppName)
	assert.Equal(t, "Todo", *delta.AppName)
	require.Len(t, delta.Routes, 1)
	assert.Equal(t, "#/", delta.Routes[0].Path)
}

func TestClientProposeEmptyDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	delta, err := testClient(t, srv.URL).Propose(context.Background(), blueprint.New(), "do nothing")
	require.NoError(t, err)
	assert.True(t, delta.IsEmpty())
}

func TestClientProposeBadDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"delta":{"routes":[{"title":"no path"}]}}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Propose(context.Background(), blueprint.New(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, blueprint.ErrMalformedDelta)
}

func TestClientScaffolds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scaffold", r.URL.Path)
		w.Write([]byte(`{"files":[{"path":"api/posts/schema.json","content":"{}"}]}`))
	}))
	defer srv.Close()

	artifacts, err := testClient(t, srv.URL).Scaffold(context.Background(), "posts", blueprint.DataModel{})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "api/posts/schema.json", artifacts[0].Path)
}

func TestClientUnavailableWithoutAddress(t *testing.T) {
	_, err := testClient(t, "").Propose(context.Background(), blueprint.New(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Propose(context.Background(), blueprint.New(), "x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 500"))
}
