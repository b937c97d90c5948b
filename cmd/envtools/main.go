// Command envtools prints what the current process is running on: platform, cluster,
// CPUs per node and, inside a SLURM job, the job allocation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/velmie/x/envtools"
	"github.com/velmie/x/envtools/config"
	"github.com/velmie/x/envtools/logging"
	"github.com/velmie/x/envtools/platform"
	"github.com/velmie/x/envtools/tracing"
)

const usage = `envtools - report the execution environment

Usage:
  envtools [flags] [command]

Commands:
  info        Print the full report (default)
  platform    Print the platform family
  cluster     Print the cluster name, "?<hostname>" when unknown
  cpus        Print the number of CPUs per node
  slurm       Print whether the process runs inside a SLURM job
  partition   Print the SLURM partition, empty on login nodes
  gpu         Print whether GPUs are allocated (SLURM jobs only)
  job-cpus    Print the number of CPUs allocated to the job (SLURM jobs only)

Environment Variables:
  ENVTOOLS_CONFIG                config file (yaml, json or toml)
  ENVTOOLS_LOG_LEVEL             debug, info, warn, error (default: info)
  ENVTOOLS_LOG_FORMAT            text, json (default: text)
  ENVTOOLS_TRACING_EXPORT        none, stdout (default: none)
  ENVTOOLS_TRACING_SERVICE_NAME  service name of exported spans (default: envtools)
  ENVTOOLS_CLUSTER_VAR           variable naming the cluster (default: VSC_INSTITUTE_CLUSTER)

Flags:
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// unsupported hosts stop here, before any lookup
	p, err := platform.Current()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return runOn(ctx, p, args, stdout, stderr, nil)
}

func runOn(
	ctx context.Context,
	p platform.Platform,
	args []string,
	stdout, stderr io.Writer,
	extra []envtools.Option,
) int {
	fs := flag.NewFlagSet("envtools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "config file path")
	fs.String("log-level", "", "log level")
	fs.String("log-format", "", "log format")
	fs.String("tracing-export", "", "trace export method")
	fs.String("tracing-service-name", "", "service name of exported spans")
	fs.String("cluster-var", "", "variable naming the cluster")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(config.WithFile(*configPath), config.WithFlagSet(fs))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := logging.Setup(stderr, cfg.Log.Level, cfg.Log.Format)

	tp, shutdown, err := tracing.NewProvider(ctx, cfg.Tracing, stderr)
	if err != nil {
		logger.Error("cannot set up tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error("cannot flush spans", "error", err)
		}
	}()

	opts := append(cfg.ReporterOptions(), envtools.WithLogger(logger), envtools.WithTracerProvider(tp))
	r, err := envtools.New(p, append(opts, extra...)...)
	if err != nil {
		logger.Error("cannot create reporter", "error", err)
		return 1
	}

	command := "info"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}
	out, err := execute(ctx, r, command)
	if err != nil {
		logger.Error("lookup failed", "command", command, "error", err)
		return 1
	}
	fmt.Fprintln(stdout, out)
	return 0
}

func execute(ctx context.Context, r *envtools.Reporter, command string) (string, error) {
	switch command {
	case "info":
		return r.Info(ctx)
	case "platform":
		return r.Platform().String(), nil
	case "cluster":
		return r.Cluster(ctx, true)
	case "cpus":
		n, err := r.CPUsPerNode(ctx)
		return strconv.Itoa(n), err
	case "slurm":
		inJob, err := r.IsSlurmJob()
		return strconv.FormatBool(inJob), err
	case "partition":
		return r.Partition()
	case "gpu":
		has, err := r.HasGPU()
		return strconv.FormatBool(has), err
	case "job-cpus":
		n, err := r.JobCPUs()
		return strconv.Itoa(n), err
	}
	return "", fmt.Errorf("unknown command %q", command)
}
