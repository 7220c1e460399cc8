package handlers

import (
	"github.com/softreason/softreason/pkg/api/events"
	"github.com/softreason/softreason/pkg/reasoning"
)

// IngestRequest writes one snippet.
type IngestRequest struct {
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TTLSeconds float64        `json:"ttl_seconds,omitempty"`
	LongTTL    bool           `json:"long_ttl,omitempty"`
	Force      bool           `json:"force,omitempty"`
}

// IngestResponse carries the stored ID. Accepted is false when the novelty
// gate rejected the text.
type IngestResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// BatchIngestRequest writes several snippets with shared options.
type BatchIngestRequest struct {
	Items      []reasoning.Item `json:"items"`
	TTLSeconds float64          `json:"ttl_seconds,omitempty"`
	LongTTL    bool             `json:"long_ttl,omitempty"`
	Force      bool             `json:"force,omitempty"`
}

// BatchIngestResponse lists the IDs of accepted items in input order.
type BatchIngestResponse struct {
	IDs      []string `json:"ids"`
	Accepted int      `json:"accepted"`
}

// QueryRequest ranks stored snippets against Text.
type QueryRequest struct {
	Text   string         `json:"text"`
	TopK   int            `json:"top_k,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
}

// QueryResponse holds the ranked results.
type QueryResponse struct {
	Results []reasoning.Result `json:"results"`
}

// DeleteRequest removes records by ID.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse is empty.
type DeleteResponse struct{}

// PruneRequest is empty.
type PruneRequest struct{}

// PruneResponse reports how many expired records were removed.
type PruneResponse struct {
	Removed int `json:"removed"`
}

// HealthRequest is empty.
type HealthRequest struct{}

// WatchRequest subscribes to engine events. Empty Types receives all.
type WatchRequest struct {
	Types []string `json:"types,omitempty"`
}

// WatchEvent is one streamed engine event.
type WatchEvent = events.Event

func ingestOptions(ttl float64, longTTL, force bool) []reasoning.IngestOption {
	var opts []reasoning.IngestOption
	if ttl > 0 {
		opts = append(opts, reasoning.WithTTL(ttl))
	}
	if longTTL {
		opts = append(opts, reasoning.WithLongTTL())
	}
	if force {
		opts = append(opts, reasoning.WithForce())
	}
	return opts
}
