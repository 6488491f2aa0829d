package build

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/domain/renderer"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/generator"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/publisher"
	"github.com/forgeworks/appforge/internal/shared/id"
)

var (
	// ErrBusy reports a session whose revision queue is full.
	ErrBusy = errors.New("build: session queue is full")
	// ErrClosed reports an orchestrator that is shutting down.
	ErrClosed = errors.New("build: orchestrator closed")
)

// queueDepth bounds pending revisions per session.
const queueDepth = 16

// Result is the outcome of one completed build.
type Result struct {
	BuildID   string
	Session   session.Session
	Report    *blueprint.Report
	Artifacts session.Artifacts
}

// Options wires the orchestrator's collaborators. Proposer may be nil when
// no remote generator is configured; free-text revisions then fail cleanly
// while structured deltas keep working.
type Options struct {
	Store       *session.Store
	Renderer    *renderer.Renderer
	Scaffolder  generator.Scaffolder
	Proposer    generator.Proposer
	Publisher   *publisher.Publisher
	Broadcaster *Broadcaster
	Metrics     *monitoring.Metrics
	Logger      *logging.Logger
	// Timeout bounds each external collaborator call within a build.
	Timeout time.Duration
}

// Orchestrator executes revisions through the build state machine.
type Orchestrator struct {
	store       *session.Store
	renderer    *renderer.Renderer
	scaffolder  generator.Scaffolder
	proposer    generator.Proposer
	publisher   *publisher.Publisher
	broadcaster *Broadcaster
	metrics     *monitoring.Metrics
	log         *logging.Logger
	timeout     time.Duration

	mu     sync.Mutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	sessionID string
	delta     *blueprint.Delta
	prompt    string
	reply     chan outcome
}

type outcome struct {
	result *Result
	err    error
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Orchestrator{
		store:       opts.Store,
		renderer:    opts.Renderer,
		scaffolder:  opts.Scaffolder,
		proposer:    opts.Proposer,
		publisher:   opts.Publisher,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		timeout:     timeout,
		queues:      make(map[string]chan job),
	}
}

// Broadcaster exposes the event stream for transports.
func (o *Orchestrator) Broadcaster() *Broadcaster {
	return o.broadcaster
}

// Revise applies a structured delta to the session and runs a full build.
// It blocks until the build finishes or ctx is done; a context cancellation
// abandons the wait, not the build, which still completes in order.
func (o *Orchestrator) Revise(ctx context.Context, sessionID string, delta blueprint.Delta) (*Result, error) {
	return o.submit(ctx, job{sessionID: sessionID, delta: &delta})
}

// ReviseText asks the proposer to turn a free-text instruction into a delta
// and then builds. Fails when no proposer is configured.
func (o *Orchestrator) ReviseText(ctx context.Context, sessionID, prompt string) (*Result, error) {
	return o.submit(ctx, job{sessionID: sessionID, prompt: prompt})
}

// Close stops accepting revisions and waits for in-flight builds to drain.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, q := range o.queues {
		close(q)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) submit(ctx context.Context, j job) (*Result, error) {
	// The session must exist before the first event is published, so
	// subscribers and the worker agree on its id.
	snap, _ := o.store.GetOrCreate(j.sessionID)
	j.sessionID = snap.ID
	j.reply = make(chan outcome, 1)
	o.metrics.SessionsActive.Set(float64(o.store.Stats().TotalSessions))

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	q, ok := o.queues[j.sessionID]
	if !ok {
		q = make(chan job, queueDepth)
		o.queues[j.sessionID] = q
		o.wg.Add(1)
		go o.worker(q)
	}
	// The enqueue stays under the lock: Close closes queues under the same
	// lock, so a send can never race a close. It never blocks; a full
	// queue rejects instead.
	select {
	case q <- j:
	default:
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", ErrBusy, j.sessionID)
	}
	o.mu.Unlock()

	select {
	case out := <-j.reply:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker drains one session's queue; jobs never interleave.
func (o *Orchestrator) worker(q chan job) {
	defer o.wg.Done()
	for j := range q {
		result, err := o.run(j)
		j.reply <- outcome{result: result, err: err}
	}
}

// run executes the state machine for one revision.
func (o *Orchestrator) run(j job) (*Result, error) {
	started := time.Now()
	buildID := id.NewBuildID().String()
	log := o.log.With(
		zap.String("session_id", j.sessionID),
		zap.String("build_id", buildID))

	o.metrics.BuildsInFlight.Inc()
	defer o.metrics.BuildsInFlight.Dec()

	// Clients see which stage broke, never the raw collaborator error;
	// endpoint addresses and dial details belong in the server log only.
	fail := func(stage string, err error) (*Result, error) {
		reason := stageMessage(stage)
		o.store.SetFailure(j.sessionID, reason)
		o.metrics.RecordBuild(string(session.StatusFailed), time.Since(started))
		o.publish(Event{
			Type:      EventError,
			SessionID: j.sessionID,
			BuildID:   buildID,
			Message:   reason,
		})
		log.Warn("build failed", zap.String("stage", stage), zap.Error(err))
		if errors.Is(err, generator.ErrUnavailable) {
			return nil, fmt.Errorf("build %s: %s: %w", buildID, reason, generator.ErrUnavailable)
		}
		return nil, fmt.Errorf("build %s: %s", buildID, reason)
	}

	// Planning: resolve the delta. Free-text revisions go through the
	// proposer; structured deltas pass straight through.
	o.setStatus(j.sessionID, buildID, session.StatusPlanning, "Planning the revision")
	delta, err := o.resolveDelta(j)
	if err != nil {
		return fail("planning", err)
	}

	snap, report, err := o.store.Apply(j.sessionID, delta)
	if err != nil {
		return fail("planning", err)
	}
	o.metrics.RecordMerge(len(report.Conflicts), len(report.NewCollections))

	// Scaffolding: only on first reference of a collection.
	var extras []generator.Artifact
	if len(report.NewCollections) > 0 {
		o.setStatus(j.sessionID, buildID, session.StatusScaffolding, "Scaffolding new collections")
		extras, err = o.scaffold(snap.Blueprint, report.NewCollections)
		if err != nil {
			return fail("scaffolding", err)
		}
	}

	// Generating: evaluate the blueprint into its artifact set.
	o.setStatus(j.sessionID, buildID, session.StatusGenerating, "Generating app files")
	bundle, err := o.renderer.Render(snap.Blueprint, renderer.Options{
		StateKey: "appforge_state_" + snap.ID,
	})
	if err != nil {
		return fail("generating", err)
	}
	for _, f := range bundle.Files {
		o.publish(Event{
			Type:      EventFile,
			SessionID: j.sessionID,
			BuildID:   buildID,
			File:      &FilePayload{Path: f.Path, Content: f.Content},
		})
	}
	for _, a := range extras {
		o.publish(Event{
			Type:      EventFile,
			SessionID: j.sessionID,
			BuildID:   buildID,
			File:      &FilePayload{Path: a.Path, Content: a.Content},
		})
	}

	// The preview carries the entry document itself, so clients can show
	// the app before any URL exists. URLs follow on build_complete.
	if index, ok := bundle.Find("index.html"); ok {
		o.publish(Event{
			Type:      EventPreviewReady,
			SessionID: j.sessionID,
			BuildID:   buildID,
			File:      &FilePayload{Path: index.Path, Content: index.Content},
		})
	}

	// Rendering: persist the bundle and expose its URLs.
	o.setStatus(j.sessionID, buildID, session.StatusRendering, "Publishing the build")
	published, err := o.publisher.Publish(bundleName(snap.Blueprint, snap.ID), bundle, extras)
	if err != nil {
		return fail("rendering", err)
	}

	artifacts := session.Artifacts{
		AppURL:      published.AppURL,
		HTTPURL:     published.HTTPURL,
		DownloadURL: published.DownloadURL,
	}
	// Ready is reported through the result and the completion event; the
	// stored session returns to idle, holding the artifacts for the next
	// revision to build on.
	o.store.SetArtifacts(j.sessionID, artifacts)
	o.store.SetStatus(j.sessionID, session.StatusIdle)

	o.publish(Event{
		Type:      EventBuildComplete,
		SessionID: j.sessionID,
		BuildID:   buildID,
		Artifacts: &artifacts,
	})

	o.metrics.RecordBuild(string(session.StatusReady), time.Since(started))
	log.Info("build complete",
		zap.Duration("took", time.Since(started)),
		zap.Int("new_collections", len(report.NewCollections)),
		zap.Int("conflicts", len(report.Conflicts)))

	final, err := o.store.Get(j.sessionID)
	if err != nil {
		return fail("rendering", err)
	}
	return &Result{
		BuildID:   buildID,
		Session:   final,
		Report:    report,
		Artifacts: artifacts,
	}, nil
}

func (o *Orchestrator) resolveDelta(j job) (blueprint.Delta, error) {
	if j.delta != nil {
		return *j.delta, nil
	}
	if o.proposer == nil {
		return blueprint.Delta{}, generator.ErrUnavailable
	}
	snap, err := o.store.Get(j.sessionID)
	if err != nil {
		return blueprint.Delta{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	return o.proposer.Propose(ctx, snap.Blueprint, j.prompt)
}

// scaffold backs each first-seen collection, in deterministic order.
func (o *Orchestrator) scaffold(bp blueprint.Blueprint, collections []string) ([]generator.Artifact, error) {
	names := append([]string(nil), collections...)
	sort.Strings(names)

	var extras []generator.Artifact
	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		artifacts, err := o.scaffolder.Scaffold(ctx, name, bp.DataModels[name])
		cancel()
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
		extras = append(extras, artifacts...)
	}
	return extras, nil
}

func (o *Orchestrator) setStatus(sessionID, buildID string, status session.BuildStatus, detail string) {
	o.store.SetStatus(sessionID, status)
	o.publish(Event{
		Type:      EventStatus,
		SessionID: sessionID,
		BuildID:   buildID,
		Status:    status,
		Message:   detail,
	})
}

func (o *Orchestrator) publish(ev Event) {
	if o.broadcaster != nil {
		o.broadcaster.Publish(ev)
	}
}

// stageMessage is the client-facing description of a failed stage.
func stageMessage(stage string) string {
	switch stage {
	case "planning":
		return "planning failed: the revision could not be applied"
	case "scaffolding":
		return "scaffolding failed: new collections could not be backed"
	case "generating":
		return "generating failed: the app could not be rendered"
	default:
		return "rendering failed: the app could not be published"
	}
}

// bundleName keys the published directory by app name plus a session id
// suffix, so same-named apps from different sessions never collide.
func bundleName(bp blueprint.Blueprint, sessionID string) string {
	name := bp.AppName
	if name == "" {
		name = "app"
	}
	suffix := sessionID
	if i := strings.IndexByte(suffix, '_'); i >= 0 {
		suffix = suffix[i+1:]
	}
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return name + " " + suffix
}
