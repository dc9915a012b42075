// Package anthropic implements the mic.Provider contract against Claude via
// github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/taipm/mic/mic"
)

// Adapter implements mic.Provider for Claude models. Strict format-mode or
// strict tools route the request through the beta surface (see beta.go);
// everything else uses the stable Messages API.
type Adapter struct {
	client      anthropic.Client
	hasClient   bool
	credentials mic.CredentialSource
	baseURL     string
}

// New builds an Adapter. Like the other adapters, the client is constructed
// lazily so a missing credential surfaces as mic.KindMissingAPIKey at call
// time, not at construction.
func New(cfg mic.ProviderConfig) *Adapter {
	return &Adapter{credentials: cfg.Credentials, baseURL: cfg.BaseURL}
}

func (a *Adapter) ID() string { return "anthropic" }

func (a *Adapter) client_(ctx context.Context) (anthropic.Client, error) {
	if a.hasClient {
		return a.client, nil
	}
	key, err := a.credentials()
	if err != nil {
		return anthropic.Client{}, err
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	a.client = anthropic.NewClient(opts...)
	a.hasClient = true
	return a.client, nil
}

func (a *Adapter) Call(ctx context.Context, req mic.Request) (*mic.Response, error) {
	client, err := a.client_(ctx)
	if err != nil {
		return nil, err
	}
	_, modelName, _, err := req.ModelID.Parse()
	if err != nil {
		return nil, err
	}
	if shouldUseBeta(req, modelName) {
		return a.callBeta(ctx, client, modelName, req)
	}
	return a.callMessages(ctx, client, modelName, req)
}

func (a *Adapter) Stream(ctx context.Context, req mic.Request) (*mic.StreamResponse, error) {
	client, err := a.client_(ctx)
	if err != nil {
		return nil, err
	}
	_, modelName, _, err := req.ModelID.Parse()
	if err != nil {
		return nil, err
	}
	if shouldUseBeta(req, modelName) {
		return a.streamBeta(ctx, client, modelName, req)
	}
	return a.streamMessages(ctx, client, modelName, req)
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapError translates a transport failure into a *mic.ModelError per the
// canonical status-code table, mirroring the OpenAI adapter.
func mapError(provider string, modelID mic.ModelID, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
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
	case status == 401:
		return mic.KindAuthentication
	case status == 403:
		return mic.KindPermission
	case status == 400:
		return mic.KindBadRequest
	case status == 404:
		return mic.KindNotFound
	case status == 429:
		return mic.KindRateLimit
	case status >= 500:
		return mic.KindServer
	default:
		return mic.KindAPI
	}
}
