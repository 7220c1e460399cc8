package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables that override config keys.
	EnvPrefix = "SOFTREASON_"
	// Delimiter separates nested keys.
	Delimiter = "."
)

// DefaultSearchPaths are tried in order when no config file is given.
var DefaultSearchPaths = []string{
	"softreason.yaml",
	"config.yaml",
	"config.yml",
	"config.json",
	"configs/config.yaml",
	"/etc/softreason/config.yaml",
}

// ErrUnsupportedFormat is returned for config files that are neither YAML
// nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

var parsers = map[string]func() koanf.Parser{
	".yaml": func() koanf.Parser { return yaml.Parser() },
	".yml":  func() koanf.Parser { return yaml.Parser() },
	".json": func() koanf.Parser { return json.Parser() },
}

// Loader layers defaults, a config file, SOFTREASON_* environment variables
// and explicit overrides, later sources winning key by key.
type Loader struct {
	k           *koanf.Koanf
	searchPaths []string
	source      string

	// envKeys resolves SERVER_RATE_LIMIT_BURST to server.rate_limit.burst,
	// which a plain underscore split would get wrong.
	envKeys map[string]string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSearchPaths replaces DefaultSearchPaths.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.searchPaths = paths }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{k: koanf.New(Delimiter), searchPaths: DefaultSearchPaths}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates a Config. An explicit path must exist; without
// one the first existing search path is used, if any. Each call starts
// from scratch so a Loader can be reused for reloads.
func (l *Loader) Load(path string, overrides map[string]any) (*Config, error) {
	l.k = koanf.New(Delimiter)
	l.source = ""

	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := l.loadFile(path); err != nil {
		return nil, err
	}
	if err := l.k.Load(env.Provider(EnvPrefix, Delimiter, l.envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source is the config file the last Load read, or "" when defaults and
// environment were enough.
func (l *Loader) Source() string {
	return l.source
}

// Koanf exposes the merged key space of the last Load.
func (l *Loader) Koanf() *koanf.Koanf {
	return l.k
}

func (l *Loader) loadDefaults() error {
	defaults := make(map[string]any)
	flatten(reflect.ValueOf(DefaultConfig()), "", defaults)

	l.envKeys = make(map[string]string, len(defaults))
	for key := range defaults {
		l.envKeys[strings.ReplaceAll(key, Delimiter, "_")] = key
	}
	return l.k.Load(confmap.Provider(defaults, Delimiter), nil)
}

func (l *Loader) loadFile(path string) error {
	if path == "" {
		for _, candidate := range l.searchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil
		}
	}

	newParser, ok := parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := l.k.Load(file.Provider(path), newParser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	l.source = path
	return nil
}

// envKey maps SOFTREASON_SERVER_RATE_LIMIT_BURST to server.rate_limit.burst.
// Names that match no default key have every underscore replaced.
func (l *Loader) envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if known, ok := l.envKeys[key]; ok {
		return known
	}
	return strings.ReplaceAll(key, "_", Delimiter)
}

var durationType = reflect.TypeOf(time.Duration(0))

// flatten writes every mapstructure-tagged leaf of v into out under its
// dotted key. Nil pointers and maps are skipped so they stay unset.
func flatten(v reflect.Value, prefix string, out map[string]any) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + Delimiter + name
		}

		fv := v.Field(i)
		switch {
		case fv.Type() == durationType:
			out[key] = fv.Interface().(time.Duration).String()
		case fv.Kind() == reflect.Struct:
			flatten(fv, key, out)
		case fv.Kind() == reflect.Pointer && fv.Elem().Kind() == reflect.Struct:
			flatten(fv, key, out)
		case fv.Kind() == reflect.Map || fv.Kind() == reflect.Pointer:
			if !fv.IsNil() {
				out[key] = fv.Interface()
			}
		case fv.Kind() == reflect.Slice:
			items := make([]any, fv.Len())
			for j := range items {
				items[j] = fv.Index(j).Interface()
			}
			out[key] = items
		default:
			out[key] = fv.Interface()
		}
	}
}

// Load reads configuration with a fresh Loader.
func Load(path string, overrides map[string]any) (*Config, error) {
	return NewLoader().Load(path, overrides)
}

// MustLoad is Load that panics on error.
func MustLoad(path string, overrides map[string]any) *Config {
	cfg, err := Load(path, overrides)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}
