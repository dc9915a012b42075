// Package openai implements the mic.Provider contract against the OpenAI
// Chat Completions API via github.com/openai/openai-go/v3.
package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/taipm/mic/mic"
)

// Adapter implements mic.Provider for OpenAI-compatible endpoints
// (OpenAI, Azure OpenAI via baseURL, Ollama's OpenAI-compatible API). It
// routes each request to one of two sub-adapters — Completions or
// Responses — selected by selectSubAdapter (spec §4.3); both send the
// request to the Chat Completions endpoint.
type Adapter struct {
	client      *openai.Client
	credentials mic.CredentialSource
	baseURL     string
}

// New builds an Adapter. The client is constructed lazily on first
// request so a missing credential surfaces as mic.KindMissingAPIKey at
// call time, never at construction (spec §6).
func New(cfg mic.ProviderConfig) *Adapter {
	return &Adapter{credentials: cfg.Credentials, baseURL: cfg.BaseURL}
}

func (a *Adapter) ID() string { return "openai" }

func (a *Adapter) client_(ctx context.Context) (*openai.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	key, err := a.credentials()
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	c := openai.NewClient(opts...)
	a.client = &c
	return a.client, nil
}

// subAdapter selects between the Completions and Responses sub-adapters: the
// ":responses" model-id selector, or the presence of a provider-only tool
// (e.g. web_search), routes to Responses (spec §4.3).
type subAdapter string

const (
	subCompletions subAdapter = "completions"
	subResponses   subAdapter = "responses"
)

func selectSubAdapter(selector string, tools []*mic.ToolSchema) subAdapter {
	if selector == "responses" {
		return subResponses
	}
	for _, t := range tools {
		if t.Name == "web_search" {
			return subResponses
		}
	}
	return subCompletions
}

func (a *Adapter) Call(ctx context.Context, req mic.Request) (*mic.Response, error) {
	client, err := a.client_(ctx)
	if err != nil {
		return nil, err
	}
	_, modelName, selector, err := req.ModelID.Parse()
	if err != nil {
		return nil, err
	}
	switch selectSubAdapter(selector, req.Tools) {
	case subResponses:
		return a.callResponses(ctx, client, modelName, req)
	default:
		return a.callCompletions(ctx, client, modelName, req)
	}
}

func (a *Adapter) Stream(ctx context.Context, req mic.Request) (*mic.StreamResponse, error) {
	client, err := a.client_(ctx)
	if err != nil {
		return nil, err
	}
	_, modelName, selector, err := req.ModelID.Parse()
	if err != nil {
		return nil, err
	}
	switch selectSubAdapter(selector, req.Tools) {
	case subResponses:
		return a.streamResponses(ctx, client, modelName, req)
	default:
		return a.streamCompletions(ctx, client, modelName, req)
	}
}

// mapError translates a transport failure into a *mic.ModelError per the
// canonical status-code table (spec §4.3).
func mapError(provider string, modelID mic.ModelID, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return mic.NewModelError(kindForStatus(apiErr.StatusCode), provider, modelID, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return mic.NewModelError(mic.KindTimeout, provider, modelID, err)
	}
	return mic.NewModelError(mic.KindConnection, provider, modelID, err)
}

func kindForStatus(status int) mic.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return mic.KindAuthentication
	case status == http.StatusForbidden:
		return mic.KindPermission
	case status == http.StatusBadRequest:
		return mic.KindBadRequest
	case status == http.StatusNotFound:
		return mic.KindNotFound
	case status == http.StatusTooManyRequests:
		return mic.KindRateLimit
	case status >= 500:
		return mic.KindServer
	default:
		return mic.KindAPI
	}
}
