package envtools

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// EnvInstituteCluster names the cluster on VSC sites
	EnvInstituteCluster = "VSC_INSTITUTE_CLUSTER"

	// UnknownPrefix marks a hostname returned in place of an unrecognized cluster
	UnknownPrefix = "?"
)

// Marker maps a path whose existence identifies a cluster onto the cluster name.
type Marker struct {
	Path string
	Name string
}

// DefaultMarkers returns the built-in marker table
func DefaultMarkers() []Marker {
	return []Marker{
		{Path: "/appl/lumi", Name: "lumi"},
	}
}

// Cluster resolves the name of the cluster the process runs on.
//
// The cluster variable wins whenever it is set, then the first marker path that exists.
// When nothing matches the hostname prefixed with UnknownPrefix is returned if unknownAllowed,
// otherwise the error wraps ErrUnsupportedEnvironment.
func (r *Reporter) Cluster(ctx context.Context, unknownAllowed bool) (cluster string, err error) {
	_, span := r.tracer.Start(ctx, "envtools.cluster",
		trace.WithAttributes(attribute.Bool("envtools.unknown_allowed", unknownAllowed)),
	)
	defer func() { finishSpan(span, err) }()

	v, err := r.variable(r.clusterVar)
	if err != nil {
		return "", err
	}
	if v.Exist {
		span.SetAttributes(attribute.String("envtools.cluster.source", "env"))
		return v.Val, nil
	}

	for _, m := range r.markers {
		if r.exists(m.Path) {
			r.logger.Debug("cluster identified by marker", "path", m.Path, "cluster", m.Name)
			span.SetAttributes(attribute.String("envtools.cluster.source", "marker"))
			return m.Name, nil
		}
	}

	host, err := r.host()
	if err != nil {
		return "", err
	}
	if unknownAllowed {
		span.SetAttributes(attribute.String("envtools.cluster.source", "hostname"))
		return UnknownPrefix + host, nil
	}
	return "", newError("identify cluster", ErrUnsupportedEnvironment, "cluster unknown to envtools (hostname=%s)", host)
}

func (r *Reporter) exists(p string) bool {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "."
	}
	_, err := fs.Stat(r.fsys, name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("cannot stat cluster marker", "path", p, "error", err)
	}
	return err == nil
}
