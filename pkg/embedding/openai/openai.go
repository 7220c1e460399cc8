// Package openai implements embedding.Embedder on top of the OpenAI
// embeddings API (or any server speaking the same protocol).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/softreason/softreason/pkg/embedding"
)

// Config holds configuration for the OpenAI embedder.
type Config struct {
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a local gateway.
	BaseURL string

	Model string

	// Dimensions asks text-embedding-3 models for shortened vectors. It is
	// also reported by Dimension.
	Dimensions int
}

// Embedder calls the embeddings endpoint for every text.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// New creates an OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Dimension implements embedding.Embedder.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embeddings: %w", err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, embedding.ErrEmptyEmbedding
	}

	return rsp.Data[0].Embedding, nil
}
