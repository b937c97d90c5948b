package envtools_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/velmie/x/envx"

	. "github.com/velmie/x/envtools"
	"github.com/velmie/x/envtools/platform"
)

const testHost = "node042"

const lscpuOutput = `Architecture:            x86_64
  CPU op-mode(s):        32-bit, 64-bit
  Byte Order:            Little Endian
CPU(s):                  8
  On-line CPU(s) list:   0-7
Vendor ID:               GenuineIntel
NUMA node0 CPU(s):       0-7
`

func staticHostname(name string) func() (string, error) {
	return func() (string, error) { return name, nil }
}

// fakeRunner answers with fixed outputs keyed by command name.
func fakeRunner(outputs map[string]string) Runner {
	return RunnerFunc(func(_ context.Context, name string, _ ...string) (string, error) {
		out, ok := outputs[name]
		if !ok {
			return "", errors.New(name + ": command not found")
		}
		return out, nil
	})
}

// failingSource fails every lookup.
type failingSource struct{}

func (failingSource) Lookup(string) (string, bool, error) {
	return "", false, errors.New("source unavailable")
}

func (failingSource) Name() string {
	return "failing"
}

func newReporter(t *testing.T, p platform.Platform, env map[string]string, opts ...Option) *Reporter {
	t.Helper()
	base := []Option{
		WithEnvironment(envx.NewMapSource(env, "test")),
		WithFS(fstest.MapFS{}),
		WithHostname(staticHostname(testHost)),
		WithRunner(fakeRunner(map[string]string{"lscpu": lscpuOutput, "sysctl": "hw.ncpu: 10\n"})),
	}
	r, err := New(p, append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func jobEnv() map[string]string {
	return map[string]string{
		"SLURM_JOBID":             "123456",
		"SLURM_JOB_ID":            "123456",
		"SLURM_JOB_NAME":          "train",
		"SLURM_JOB_PARTITION":     "gpu",
		"SLURM_JOB_NUM_NODES":     "2",
		"SLURM_NTASKS":            "4",
		"SLURM_CPUS_PER_TASK":     "16",
		"SLURM_CPUS_ON_NODE":      "64",
		"SLURM_JOB_CPUS_PER_NODE": "64(x2)",
		"SLURM_GPUS_ON_NODE":      "4",
	}
}
