package envtools

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/velmie/x/envtools/platform"
)

var (
	sysctlNCPU = regexp.MustCompile(`^hw\.ncpu: (\d+)\n`)
	lscpuCPUs  = regexp.MustCompile(`^CPU\(s\):\s+(\d+)`)
)

// CPUsPerNode returns the number of CPUs available on the node.
//
// On darwin the value comes from "sysctl hw.ncpu". On linux SLURM_CPUS_ON_NODE is used inside
// a job, otherwise the first "CPU(s):" line printed by lscpu.
func (r *Reporter) CPUsPerNode(ctx context.Context) (n int, err error) {
	ctx, span := r.tracer.Start(ctx, "envtools.cpus_per_node")
	defer func() {
		span.SetAttributes(attribute.Int("envtools.cpus", n))
		finishSpan(span, err)
	}()

	switch r.platform {
	case platform.Darwin:
		return r.sysctlCPUs(ctx)
	case platform.Linux:
		inJob, err := r.IsSlurmJob()
		if err != nil {
			return 0, err
		}
		if inJob {
			v, err := r.variable(EnvCPUsOnNode)
			if err != nil {
				return 0, err
			}
			if v.Exist {
				n, err = v.NotEmpty().MinInt(1).Int()
				if err != nil {
					return 0, fmt.Errorf("cannot count cpus per node: %w", err)
				}
				return n, nil
			}
			r.logger.Debug("cpu count not provided by SLURM, falling back to lscpu", "var", EnvCPUsOnNode)
		}
		return r.lscpuCPUs(ctx)
	}
	return 0, fmt.Errorf("%w: %q", platform.ErrUnsupportedPlatform, r.platform)
}

func (r *Reporter) sysctlCPUs(ctx context.Context) (int, error) {
	out, err := r.runner.Run(ctx, "sysctl", "hw.ncpu")
	if err != nil {
		return 0, fmt.Errorf("cannot run sysctl: %w", err)
	}
	m := sysctlNCPU.FindStringSubmatch(out)
	if m == nil {
		return 0, newError("count cpus per node", ErrParse, "unable to read #cpus/node from sysctl output %q", out)
	}
	return strconv.Atoi(m[1])
}

func (r *Reporter) lscpuCPUs(ctx context.Context) (int, error) {
	out, err := r.runner.Run(ctx, "lscpu")
	if err != nil {
		return 0, fmt.Errorf("cannot run lscpu: %w", err)
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if m := lscpuCPUs.FindStringSubmatch(sc.Text()); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("cannot read lscpu output: %w", err)
	}
	return 0, newError("count cpus per node", ErrParse, "unable to read #cpus/node from lscpu output")
}
