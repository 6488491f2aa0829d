package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/domain/renderer"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/generator"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/publisher"
)

// metrics register against the process-global prometheus registry, so the
// test binary shares one instance.
var testMetrics = monitoring.NewMetrics()

type fixture struct {
	store *session.Store
	orch  *Orchestrator
	pub   *publisher.Publisher
}

func newFixture(t *testing.T, opts func(*Options)) *fixture {
	t.Helper()
	pub, err := publisher.New(
		config.WorkspaceConfig{Dir: t.TempDir()},
		config.ServerConfig{BaseURL: "http://localhost:8000"},
		logging.NewNop(),
	)
	require.NoError(t, err)

	store := session.NewStore()
	o := Options{
		Store:       store,
		Renderer:    renderer.New(),
		Scaffolder:  generator.NewLocalScaffolder(),
		Publisher:   pub,
		Broadcaster: NewBroadcaster(),
		Metrics:     testMetrics,
		Logger:      logging.NewNop(),
		Timeout:     5 * time.Second,
	}
	if opts != nil {
		opts(&o)
	}
	orch := New(o)
	t.Cleanup(orch.Close)
	return &fixture{store: store, orch: orch, pub: pub}
}

func textDelta(value string) blueprint.Delta {
	return blueprint.Delta{Routes: []blueprint.Route{{
		Path:       "#/",
		Components: []blueprint.Component{{Type: blueprint.KindText, Value: value}},
	}}}
}

func tableDelta(collection string) blueprint.Delta {
	return blueprint.Delta{Routes: []blueprint.Route{{
		Path: "#/",
		Components: []blueprint.Component{{
			Type:       blueprint.KindTable,
			Collection: collection,
			Columns:    []blueprint.Column{{Field: "name"}},
		}},
	}}}
}

func TestReviseBuildsAndPublishes(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.orch.Revise(context.Background(), "", textDelta("hi"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.BuildID)
	assert.Contains(t, res.Artifacts.HTTPURL, "/apps/")
	assert.Contains(t, res.Artifacts.DownloadURL, ".zip")

	// the session settles back to idle with the artifacts recorded
	assert.Equal(t, session.StatusIdle, res.Session.Status)
	assert.Empty(t, res.Session.LastError)
	require.NotNil(t, res.Session.Artifacts)
	assert.Equal(t, res.Artifacts.AppURL, res.Session.Artifacts.AppURL)

	data, err := os.ReadFile(res.Artifacts.AppURL)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hi")
}

func TestReviseEventOrdering(t *testing.T) {
	f := newFixture(t, nil)
	snap, _ := f.store.GetOrCreate("")
	ch, cancel := f.orch.Broadcaster().Subscribe(snap.ID)
	defer cancel()

	_, err := f.orch.Revise(context.Background(), snap.ID, textDelta("hi"))
	require.NoError(t, err)

	var types []EventType
	var statuses []session.BuildStatus
	var preview *Event
	previewAt, renderingAt, lastFileAt := -1, -1, -1
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
			switch ev.Type {
			case EventStatus:
				statuses = append(statuses, ev.Status)
				if ev.Status == session.StatusRendering {
					renderingAt = len(types) - 1
				}
			case EventFile:
				lastFileAt = len(types) - 1
			case EventPreviewReady:
				cp := ev
				preview = &cp
				previewAt = len(types) - 1
			}
			if ev.Type == EventBuildComplete {
				goto done
			}
		case <-deadline:
			t.Fatal("never saw build_complete")
		}
	}
done:
	assert.Equal(t, []session.BuildStatus{
		session.StatusPlanning,
		session.StatusGenerating,
		session.StatusRendering,
	}, statuses)

	var files, previews, completes int
	for _, typ := range types {
		switch typ {
		case EventFile:
			files++
		case EventPreviewReady:
			previews++
		case EventBuildComplete:
			completes++
		}
	}
	assert.Equal(t, 4, files, "one event per bundle file")
	assert.Equal(t, 1, previews)
	assert.Equal(t, 1, completes)
	assert.Equal(t, EventBuildComplete, types[len(types)-1])

	// the preview carries the entry document and lands after the file
	// stream but before publishing starts
	require.NotNil(t, preview)
	require.NotNil(t, preview.File)
	assert.Equal(t, "index.html", preview.File.Path)
	assert.Contains(t, string(preview.File.Content), "<!DOCTYPE html>")
	assert.Greater(t, previewAt, lastFileAt)
	assert.Less(t, previewAt, renderingAt)
}

func TestReviseScaffoldsNewCollectionsOnce(t *testing.T) {
	f := newFixture(t, nil)
	snap, _ := f.store.GetOrCreate("")
	ch, cancel := f.orch.Broadcaster().Subscribe(snap.ID)
	defer cancel()

	res, err := f.orch.Revise(context.Background(), snap.ID, tableDelta("stats"))
	require.NoError(t, err)

	scaffolded := drainStatuses(t, ch)
	assert.Contains(t, scaffolded, session.StatusScaffolding)

	appDir := filepath.Dir(res.Artifacts.AppURL)
	if _, err := os.Stat(filepath.Join(appDir, "api", "stats", "schema.json")); err != nil {
		t.Errorf("scaffold artifact not published: %v", err)
	}

	// same collection again: no scaffolding phase
	_, err = f.orch.Revise(context.Background(), snap.ID, tableDelta("stats"))
	require.NoError(t, err)
	assert.NotContains(t, drainStatuses(t, ch), session.StatusScaffolding)
}

func drainStatuses(t *testing.T, ch <-chan Event) []session.BuildStatus {
	t.Helper()
	var out []session.BuildStatus
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == EventStatus {
				out = append(out, ev.Status)
			}
			if ev.Type == EventBuildComplete || ev.Type == EventError {
				return out
			}
		case <-deadline:
			t.Fatal("never saw a terminal event")
		}
	}
}

type failingScaffolder struct{}

func (failingScaffolder) Scaffold(context.Context, string, blueprint.DataModel) ([]generator.Artifact, error) {
	return nil, errors.New("dial tcp 10.0.0.9:7501: connect: connection refused")
}

func TestReviseScaffoldFailureKeepsLastGoodState(t *testing.T) {
	f := newFixture(t, nil)
	snap, _ := f.store.GetOrCreate("")

	// first build succeeds and records artifacts
	good, err := f.orch.Revise(context.Background(), snap.ID, textDelta("hi"))
	require.NoError(t, err)

	// swap in a broken scaffolder for the second build
	f.orch.scaffolder = failingScaffolder{}
	_, err = f.orch.Revise(context.Background(), snap.ID, tableDelta("stats"))
	require.Error(t, err)

	after, err := f.store.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusIdle, after.Status)
	assert.Contains(t, after.LastError, "scaffolding")
	require.NotNil(t, after.Artifacts)
	assert.Equal(t, good.Artifacts.AppURL, after.Artifacts.AppURL)
}

func TestReviseFailureHidesInternalDetail(t *testing.T) {
	f := newFixture(t, nil)
	snap, _ := f.store.GetOrCreate("")
	ch, cancel := f.orch.Broadcaster().Subscribe(snap.ID)
	defer cancel()

	f.orch.scaffolder = failingScaffolder{}
	_, err := f.orch.Revise(context.Background(), snap.ID, tableDelta("stats"))
	require.Error(t, err)

	// callers learn the failed stage, never the collaborator's dial error
	assert.Contains(t, err.Error(), "scaffolding")
	assert.NotContains(t, err.Error(), "dial tcp")

	var message string
	deadline := time.After(2 * time.Second)
	for message == "" {
		select {
		case ev := <-ch:
			if ev.Type == EventError {
				message = ev.Message
			}
		case <-deadline:
			t.Fatal("never saw an error event")
		}
	}
	assert.Contains(t, message, "scaffolding")
	assert.NotContains(t, message, "dial tcp")

	after, err := f.store.Get(snap.ID)
	require.NoError(t, err)
	assert.NotContains(t, after.LastError, "dial tcp")
}

func TestReviseSerializesPerSession(t *testing.T) {
	f := newFixture(t, nil)
	snap, _ := f.store.GetOrCreate("")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.orch.Revise(context.Background(), snap.ID, textDelta("hi"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	after, err := f.store.Get(snap.ID)
	require.NoError(t, err)
	assert.Len(t, after.History, 4)
	assert.Equal(t, session.StatusIdle, after.Status)
}

func TestReviseParallelSessions(t *testing.T) {
	f := newFixture(t, nil)
	a, _ := f.store.GetOrCreate("")
	b, _ := f.store.GetOrCreate("")
	require.NotEqual(t, a.ID, b.ID)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); _, errA = f.orch.Revise(context.Background(), a.ID, textDelta("a")) }()
	go func() { defer wg.Done(); _, errB = f.orch.Revise(context.Background(), b.ID, textDelta("b")) }()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
}

type staticProposer struct {
	delta blueprint.Delta
	err   error
}

func (p staticProposer) Propose(context.Context, blueprint.Blueprint, string) (blueprint.Delta, error) {
	return p.delta, p.err
}

func TestReviseTextUsesProposer(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Proposer = staticProposer{delta: textDelta("proposed")}
	})

	res, err := f.orch.ReviseText(context.Background(), "", "add a greeting")
	require.NoError(t, err)
	require.Len(t, res.Session.Blueprint.Routes, 1)
	assert.Equal(t, "proposed", res.Session.Blueprint.Routes[0].Components[0].Value)
}

func TestReviseTextWithoutProposerFails(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orch.ReviseText(context.Background(), "", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, generator.ErrUnavailable)
}

func TestReviseAfterCloseFails(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.Close()
	_, err := f.orch.Revise(context.Background(), "", textDelta("hi"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReviseDuringCloseNeverPanics(t *testing.T) {
	f := newFixture(t, nil)

	// warm up a handful of session queues
	ids := make([]string, 4)
	for i := range ids {
		snap, _ := f.store.GetOrCreate("")
		ids[i] = snap.ID
		_, err := f.orch.Revise(context.Background(), snap.ID, textDelta("warm"))
		require.NoError(t, err)
	}

	// hammer submissions while Close tears the queues down; every call
	// must resolve to a result or ErrClosed, never a panic
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.orch.Revise(context.Background(), ids[n%len(ids)], textDelta("race"))
			if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrBusy) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	f.orch.Close()
	wg.Wait()
}

func TestReviseTracksActiveSessions(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.Revise(context.Background(), "", textDelta("one"))
	require.NoError(t, err)
	_, err = f.orch.Revise(context.Background(), "", textDelta("two"))
	require.NoError(t, err)

	assert.Equal(t,
		float64(f.store.Stats().TotalSessions),
		testutil.ToFloat64(testMetrics.SessionsActive))
}
