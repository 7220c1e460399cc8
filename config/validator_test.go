package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_HostAlias(t *testing.T) {
	type probe struct {
		Host string `validate:"omitempty,host"`
	}
	tests := []struct {
		host string
		ok   bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"0.0.0.0", true},
		{"api.example.com", true},
		{"mem-cache.internal", true},
		{"::1", true},
		{"2001:db8::1", true},
		{"127.0.0.1:8080", false},
		{"my_server", false},
		{"-bad.example.com", false},
		{"api..example.com", false},
		{"invalid host", false},
		{strings.Repeat("a", 64) + ".com", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := validate.Struct(probe{Host: tt.host})
			assert.Equal(t, tt.ok, err == nil, "err = %v", err)
		})
	}
}

func TestValidate_EnvAlias(t *testing.T) {
	type probe struct {
		Env string `validate:"env"`
	}
	for _, env := range []string{"development", "staging", "production"} {
		assert.NoError(t, validate.Struct(probe{Env: env}), env)
	}
	for _, env := range []string{"", "prod", "test"} {
		assert.Error(t, validate.Struct(probe{Env: env}), env)
	}
}

func TestValidate_ReportsConfigKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.Host = "bad host"
	cfg.Log.Level = "trace"
	cfg.App.Environment = "qa"
	cfg.Recall.RecencyHorizonSec = 0
	cfg.Store.Type = "pgvector"
	cfg.Store.PGVector.DSN = ""

	var errs ValidationErrors
	require.ErrorAs(t, cfg.Validate(), &errs)

	want := map[string]string{
		"server.port":                "is required",
		"server.host":                "must be a hostname or IP address",
		"log.level":                  "must be one of [debug info warn error]",
		"app.environment":            "must be one of [development staging production]",
		"recall.recency_horizon_sec": "must be greater than 0",
		"store.pgvector.dsn":         "is required",
	}
	for key, msg := range want {
		fe, ok := errs.Lookup(key)
		if assert.True(t, ok, "no error for %s in %v", key, errs) {
			assert.Equal(t, msg, fe.Message(), key)
		}
	}
	assert.Len(t, errs, len(want))
}

func TestFieldError_UnknownRule(t *testing.T) {
	fe := FieldError{Key: "store.type", Rule: "faiss_only", Value: "x"}
	assert.Equal(t, "store.type failed rule faiss_only (got x)", fe.Error())
}
