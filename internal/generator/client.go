package generator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/resilience"
)

// Client talks to a remote generator service over HTTP. It wraps resty with
// a retrying transport, a rate limiter, and a circuit breaker so a dead
// generator degrades to fast failures instead of piling up blocked builds.
type Client struct {
	address string
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
}

// NewClient builds a generator client from configuration. An empty address
// is allowed; every call then fails with ErrUnavailable.
func NewClient(cfg config.GeneratorConfig, log *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.Address).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "AppForge/1.0").
		SetHeader("Content-Type", "application/json")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("generator", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("generator breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		address: cfg.Address,
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		breaker: breaker,
		log:     log,
	}
}

type proposeRequest struct {
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Prompt    string              `json:"prompt"`
}

type proposeResponse struct {
	Delta sonicRaw `json:"delta"`
}

type scaffoldRequest struct {
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
}

type scaffoldResponse struct {
	Files []struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"files"`
}

// sonicRaw defers delta decoding to blueprint.ParseDelta so malformed remote
// deltas surface as blueprint.ErrMalformedDelta.
type sonicRaw []byte

func (r *sonicRaw) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// Propose asks the remote service for a delta implementing the instruction.
func (c *Client) Propose(ctx context.Context, bp blueprint.Blueprint, prompt string) (blueprint.Delta, error) {
	var out proposeResponse
	err := c.call(ctx, "/v1/propose", proposeRequest{Blueprint: bp, Prompt: prompt}, &out)
	if err != nil {
		return blueprint.Delta{}, err
	}
	if len(out.Delta) == 0 {
		return blueprint.Delta{}, nil
	}
	delta, err := blueprint.ParseDelta(out.Delta)
	if err != nil {
		return blueprint.Delta{}, fmt.Errorf("generator returned bad delta: %w", err)
	}
	return delta, nil
}

// Scaffold asks the remote service for backing artifacts for a collection.
func (c *Client) Scaffold(ctx context.Context, collection string, model blueprint.DataModel) ([]Artifact, error) {
	var out scaffoldResponse
	err := c.call(ctx, "/v1/scaffold", scaffoldRequest{Collection: collection, Fields: model.Fields}, &out)
	if err != nil {
		return nil, err
	}
	artifacts := make([]Artifact, 0, len(out.Files))
	for _, f := range out.Files {
		artifacts = append(artifacts, Artifact{Path: f.Path, Content: []byte(f.Content)})
	}
	return artifacts, nil
}

func (c *Client) call(ctx context.Context, path string, body, out interface{}) error {
	if c.address == "" {
		return ErrUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("generator rate limit: %w", err)
	}

	payload, err := sonic.ConfigStd.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode generator request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetBody(payload).
			Post(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("generator %s: status %d", path, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	switch {
	case err == resilience.ErrCircuitOpen, err == resilience.ErrTooManyRequests:
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	case err != nil:
		return fmt.Errorf("generator %s: %w", path, err)
	}

	if err := sonic.ConfigStd.Unmarshal(result.([]byte), out); err != nil {
		return fmt.Errorf("decode generator response: %w", err)
	}
	return nil
}
