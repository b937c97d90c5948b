// Package config loads the envtools configuration.
//
// Values are layered from lowest to highest priority: built-in defaults, an optional
// config file (yaml, json or toml), ENVTOOLS_* environment variables and command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/velmie/x/envx"

	"github.com/velmie/x/envtools"
	"github.com/velmie/x/envtools/tracing"
)

const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "ENVTOOLS_"
	// EnvConfigFile names the config file when no path is passed explicitly
	EnvConfigFile = EnvPrefix + "CONFIG"

	tagName = "k"
)

var (
	errUnsupportedConfigFormat = errors.New("unsupported config file format")
	errConfigFileIsDir         = errors.New("config file path must be a file")
	errInvalidMarker           = errors.New("cluster marker requires both path and name")
	errInvalidLogFormat        = errors.New("log format must be text or json")
)

// Config is the complete envtools configuration
type Config struct {
	Log     LogConfig      `k:"log"`
	Tracing tracing.Config `k:"tracing"`
	Cluster ClusterConfig  `k:"cluster"`
}

// LogConfig controls slog output
type LogConfig struct {
	Level  string `k:"level"`
	Format string `k:"format"`
}

// ClusterConfig controls cluster identification
type ClusterConfig struct {
	// Var is the variable naming the cluster
	Var string `k:"var"`
	// Markers replace the built-in marker table when not empty
	Markers []MarkerConfig `k:"markers"`
}

// MarkerConfig is a cluster marker as written in configuration
type MarkerConfig struct {
	Path string `k:"path"`
	Name string `k:"name"`
}

func markerConfigs(markers []envtools.Marker) []MarkerConfig {
	out := make([]MarkerConfig, 0, len(markers))
	for _, m := range markers {
		out = append(out, MarkerConfig{Path: m.Path, Name: m.Name})
	}
	return out
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing.DefaultConfig,
		Cluster: ClusterConfig{
			Var:     envtools.EnvInstituteCluster,
			Markers: markerConfigs(envtools.DefaultMarkers()),
		},
	}
}

// ReporterOptions converts the cluster settings into reporter options
func (c *Config) ReporterOptions() []envtools.Option {
	opts := []envtools.Option{envtools.WithClusterVar(c.Cluster.Var)}
	if len(c.Cluster.Markers) > 0 {
		markers := make([]envtools.Marker, 0, len(c.Cluster.Markers))
		for _, m := range c.Cluster.Markers {
			markers = append(markers, envtools.Marker{Path: m.Path, Name: m.Name})
		}
		opts = append(opts, envtools.WithMarkers(markers...))
	}
	return opts
}

// Validate checks values which cannot be caught while decoding
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", errInvalidLogFormat, c.Log.Format))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	for i, m := range c.Cluster.Markers {
		if strings.TrimSpace(m.Path) == "" || strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Errorf("cluster.markers[%d]: %w", i, errInvalidMarker))
		}
	}
	return errors.Join(errs...)
}

type options struct {
	file    string
	flagSet *flag.FlagSet
}

// Option configures Load
type Option func(*options)

// WithFile loads the given config file, it takes precedence over ENVTOOLS_CONFIG
func WithFile(path string) Option {
	return func(o *options) {
		o.file = strings.TrimSpace(path)
	}
}

// WithFlagSet enables flag values as a configuration source.
// Only flags set on the command line are applied, "log-level" maps onto "log.level".
func WithFlagSet(fs *flag.FlagSet) Option {
	return func(o *options) {
		o.flagSet = fs
	}
}

// envKeys lists the scalar keys which can be set through the environment
var envKeys = []string{
	"log.level",
	"log.format",
	"tracing.export",
	"tracing.service_name",
	"cluster.var",
}

// Load builds the configuration.
func Load(opts ...Option) (*Config, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	var err error
	path := o.file
	if path == "" {
		path, err = envx.Get(EnvConfigFile).String()
		if err != nil {
			return nil, err
		}
	}
	if err := loadFile(k, path); err != nil {
		return nil, err
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if err := loadFlags(k, o.flagSet); err != nil {
		return nil, err
	}

	c := &Config{}
	unmarshalConf := koanf.UnmarshalConf{
		Tag: tagName,
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          tagName,
			Result:           c,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		},
	}
	if err := k.UnmarshalWithConf("", c, unmarshalConf); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func defaultValues() map[string]any {
	d := Default()
	markers := make([]any, 0, len(d.Cluster.Markers))
	for _, m := range d.Cluster.Markers {
		markers = append(markers, map[string]any{"path": m.Path, "name": m.Name})
	}
	return map[string]any{
		"log.level":            d.Log.Level,
		"log.format":           d.Log.Format,
		"tracing.export":       d.Tracing.Export,
		"tracing.service_name": d.Tracing.ServiceName,
		"cluster.var":          d.Cluster.Var,
		"cluster.markers":      markers,
	}
}

func loadFile(k *koanf.Koanf, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("stat config file %q: %w", cleanPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config file %q: %w", cleanPath, errConfigFileIsDir)
	}

	parser, err := parserForPath(cleanPath)
	if err != nil {
		return err
	}
	if err := k.Load(file.Provider(cleanPath), parser); err != nil {
		return fmt.Errorf("load config file %q: %w", cleanPath, err)
	}
	return nil
}

func parserForPath(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		if ext == "" {
			ext = "unknown"
		}
		return nil, fmt.Errorf("%w: %s", errUnsupportedConfigFormat, ext)
	}
}

func loadEnv(k *koanf.Koanf) error {
	p := envx.CreatePrototype().WithPrefix(EnvPrefix)
	values := make(map[string]any)
	for _, key := range envKeys {
		v := p.Get(EnvName(key))
		if !v.Exist {
			continue
		}
		val, err := v.NotEmpty().String()
		if err != nil {
			return err
		}
		values[key] = val
	}
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("load environment configuration: %w", err)
	}
	return nil
}

func loadFlags(k *koanf.Koanf, fs *flag.FlagSet) error {
	if fs == nil {
		return nil
	}
	allowed := make(map[string]struct{}, len(envKeys))
	for _, key := range envKeys {
		allowed[key] = struct{}{}
	}

	values := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		dotted := flagKeyToDotted(f.Name)
		if _, ok := allowed[dotted]; ok {
			values[dotted] = f.Value.String()
		}
	})
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("load flag configuration: %w", err)
	}
	return nil
}

// EnvName returns the variable name, without EnvPrefix, for a dotted key: "log.level" -> "LOG_LEVEL".
func EnvName(dotted string) string {
	return strings.ToUpper(strings.ReplaceAll(dotted, ".", "_"))
}

// flagKeyToDotted maps "tracing-service-name" onto "tracing.service_name".
func flagKeyToDotted(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Replace(name, "-", ".", 1)
	return strings.ReplaceAll(name, "-", "_")
}
