package envtools

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/velmie/x/envx"

	"github.com/velmie/x/envtools/logging"
	"github.com/velmie/x/envtools/platform"
)

const instrumentationName = "github.com/velmie/x/envtools"

// Reporter performs the environment lookups.
// All lookups read the environment, filesystem and commands at call time, nothing is cached.
type Reporter struct {
	platform   platform.Platform
	env        envx.Source
	runner     Runner
	fsys       fs.FS
	hostname   func() (string, error)
	clusterVar string
	markers    []Marker
	logger     logging.Logger
	tracer     trace.Tracer
}

// Option configures a Reporter
type Option func(r *Reporter)

// WithEnvironment sets the source environment variables are read from
func WithEnvironment(src envx.Source) Option {
	return func(r *Reporter) {
		r.env = src
	}
}

// WithRunner sets the runner used for sysctl and lscpu
func WithRunner(runner Runner) Option {
	return func(r *Reporter) {
		r.runner = runner
	}
}

// WithFS sets the filesystem used to check cluster markers.
// Marker paths are resolved relative to its root.
func WithFS(fsys fs.FS) Option {
	return func(r *Reporter) {
		r.fsys = fsys
	}
}

// WithHostname overrides the hostname lookup
func WithHostname(hostname func() (string, error)) Option {
	return func(r *Reporter) {
		r.hostname = hostname
	}
}

// WithClusterVar overrides the name of the variable which names the cluster
func WithClusterVar(name string) Option {
	return func(r *Reporter) {
		if name != "" {
			r.clusterVar = name
		}
	}
}

// WithMarkers replaces the filesystem marker table
func WithMarkers(markers ...Marker) Option {
	return func(r *Reporter) {
		r.markers = append([]Marker(nil), markers...)
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithTracerProvider sets the provider spans are created with
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Reporter) {
		r.tracer = tp.Tracer(instrumentationName)
	}
}

// New creates a Reporter for the given platform.
// It fails with platform.ErrUnsupportedPlatform if p is neither linux nor darwin.
func New(p platform.Platform, opts ...Option) (*Reporter, error) {
	if !p.IsSupported() {
		return nil, fmt.Errorf("%w: %q", platform.ErrUnsupportedPlatform, p)
	}
	r := &Reporter{
		platform:   p,
		env:        envx.EnvSource{},
		runner:     ExecRunner{},
		fsys:       os.DirFS("/"),
		hostname:   os.Hostname,
		clusterVar: EnvInstituteCluster,
		markers:    DefaultMarkers(),
		logger:     logging.NewNoopLogger(),
		tracer:     otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Default creates a Reporter for the current host reading the real process environment.
func Default(opts ...Option) (*Reporter, error) {
	p, err := platform.Current()
	if err != nil {
		return nil, err
	}
	return New(p, opts...)
}

// Platform returns the platform the reporter was created for
func (r *Reporter) Platform() platform.Platform {
	return r.platform
}

func (r *Reporter) host() (string, error) {
	h, err := r.hostname()
	if err != nil {
		return "", fmt.Errorf("cannot determine hostname: %w", err)
	}
	return h, nil
}

// variable wraps a lookup into an envx variable so that validation and type conversion
// follow the same rules as the rest of the configuration code.
func (r *Reporter) variable(name string) (*envx.Variable, error) {
	val, found, err := r.env.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s from %s: %w", name, r.env.Name(), err)
	}
	return &envx.Variable{
		Name:  name,
		Val:   val,
		Exist: found,
	}, nil
}

// present reports whether any of the names is set, whatever its value.
func (r *Reporter) present(names ...string) (bool, error) {
	for _, name := range names {
		v, err := r.variable(name)
		if err != nil {
			return false, err
		}
		if v.Exist {
			return true, nil
		}
	}
	return false, nil
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Info builds the report for the current host using Default.
func Info(ctx context.Context) (string, error) {
	r, err := Default()
	if err != nil {
		return "", err
	}
	return r.Info(ctx)
}
