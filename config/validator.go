package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their mapstructure key, so errors name the
// same paths users write in YAML and env vars.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterAlias("env", "oneof=development staging production")
	v.RegisterAlias("host", "hostname_rfc1123|ip")

	v.RegisterStructValidation(validateStore, StoreConfig{})
	v.RegisterStructValidation(validateEmbedding, EmbeddingConfig{})
	v.RegisterStructValidation(validateTracing, TracingConfig{})
	v.RegisterStructValidation(validateGRPCTLS, GRPCTLSConfig{})
	return v
}

// FieldError is one failed rule on one config key.
type FieldError struct {
	// Key is the dotted path, e.g. "server.grpc.port".
	Key   string
	Rule  string
	Param string
	Value any
}

var ruleMessages = map[string]string{
	"required":      "is required",
	"required_with": "is required when %s is set",
	"min":           "must be at least %s",
	"max":           "must be at most %s",
	"gt":            "must be greater than %s",
	"gte":           "must be greater than or equal to %s",
	"lt":            "must be less than %s",
	"lte":           "must be less than or equal to %s",
	"oneof":         "must be one of [%s]",
	"env":           "must be one of [development staging production]",
	"host":          "must be a hostname or IP address",
}

func (e FieldError) Message() string {
	tmpl, ok := ruleMessages[e.Rule]
	if !ok {
		return "failed rule " + e.Rule
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, e.Param)
	}
	return tmpl
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Key, e.Message(), e.Value)
}

// ValidationErrors lists every failed rule of one validation pass.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Lookup returns the error for key, if any.
func (e ValidationErrors) Lookup(key string) (FieldError, bool) {
	for _, fe := range e {
		if fe.Key == key {
			return fe, true
		}
	}
	return FieldError{}, false
}

// Validate checks c and returns ValidationErrors when any rule fails.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Drop the root type name from "Config.server.port".
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, FieldError{
			Key:   key,
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}

// validateStore checks settings that only matter for the selected backend.
func validateStore(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)
	switch s.Type {
	case "badger":
		if s.Badger.Path == "" && !s.Badger.InMemory {
			sl.ReportError(s.Badger.Path, "badger.path", "Path", "required", "")
		}
	case "pgvector":
		if s.PGVector.DSN == "" {
			sl.ReportError(s.PGVector.DSN, "pgvector.dsn", "DSN", "required", "")
		}
		if s.PGVector.Table == "" {
			sl.ReportError(s.PGVector.Table, "pgvector.table", "Table", "required", "")
		}
	}
}

func validateEmbedding(sl validator.StructLevel) {
	e := sl.Current().Interface().(EmbeddingConfig)
	if e.Type == "openai" && e.OpenAI.FastModel == "" {
		sl.ReportError(e.OpenAI.FastModel, "openai.fast_model", "FastModel", "required", "")
	}
}

func validateTracing(sl validator.StructLevel) {
	t := sl.Current().Interface().(TracingConfig)
	if !t.Enabled {
		return
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		sl.ReportError(t.Endpoint, "endpoint", "Endpoint", "required", "")
	}
	if t.Timeout <= 0 {
		sl.ReportError(t.Timeout, "timeout", "Timeout", "gt", "0")
	}
}

// validateGRPCTLS needs a key pair once TLS is on, plus a CA bundle when
// client certificates are verified.
func validateGRPCTLS(sl validator.StructLevel) {
	t := sl.Current().Interface().(GRPCTLSConfig)
	if !t.Enabled {
		return
	}
	if t.CertFile == "" {
		sl.ReportError(t.CertFile, "cert_file", "CertFile", "required", "")
	}
	if t.KeyFile == "" {
		sl.ReportError(t.KeyFile, "key_file", "KeyFile", "required", "")
	}
	if t.ClientAuth && t.CAFile == "" {
		sl.ReportError(t.CAFile, "ca_file", "CAFile", "required_with", "client_auth")
	}
}
