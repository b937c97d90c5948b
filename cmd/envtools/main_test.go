package main

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velmie/x/envx"

	"github.com/velmie/x/envtools"
	"github.com/velmie/x/envtools/platform"
)

func testOptions(env map[string]string) []envtools.Option {
	return []envtools.Option{
		envtools.WithEnvironment(envx.NewMapSource(env, "test")),
		envtools.WithFS(fstest.MapFS{}),
		envtools.WithHostname(func() (string, error) { return "login1", nil }),
		envtools.WithRunner(envtools.RunnerFunc(func(context.Context, string, ...string) (string, error) {
			return "CPU(s):    8\n", nil
		})),
	}
}

func TestRunOn(t *testing.T) {
	t.Setenv("ENVTOOLS_CONFIG", "")

	jobEnv := map[string]string{
		"VSC_INSTITUTE_CLUSTER":   "hortense",
		"SLURM_JOB_ID":            "99",
		"SLURM_JOB_NAME":          "sim",
		"SLURM_JOB_PARTITION":     "cpu_rome",
		"SLURM_JOB_NUM_NODES":     "1",
		"SLURM_NTASKS":            "2",
		"SLURM_CPUS_PER_TASK":     "4",
		"SLURM_CPUS_ON_NODE":      "8",
		"SLURM_JOB_CPUS_PER_NODE": "8",
	}

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		code     int
		contains string
	}{
		{name: "default report", env: map[string]string{"VSC_INSTITUTE_CLUSTER": "hortense"}, code: 0, contains: "login node (login1)"},
		{name: "job report", args: []string{"info"}, env: jobEnv, code: 0, contains: "Job info:"},
		{name: "platform", args: []string{"platform"}, code: 0, contains: "linux"},
		{name: "unknown cluster", args: []string{"cluster"}, code: 0, contains: "?login1"},
		{name: "cpus", args: []string{"cpus"}, code: 0, contains: "8"},
		{name: "slurm", args: []string{"slurm"}, env: jobEnv, code: 0, contains: "true"},
		{name: "partition", args: []string{"partition"}, env: jobEnv, code: 0, contains: "cpu_rome"},
		{name: "gpu", args: []string{"gpu"}, env: jobEnv, code: 0, contains: "false"},
		{name: "gpu outside job", args: []string{"gpu"}, code: 1},
		{name: "job cpus", args: []string{"job-cpus"}, env: jobEnv, code: 0, contains: "8"},
		{name: "unknown command", args: []string{"reboot"}, code: 1},
		{name: "bad flag", args: []string{"-nope"}, code: 2},
		{name: "help", args: []string{"-h"}, code: 0},
		{name: "bad config", args: []string{"-log-format", "xml"}, code: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
			code := runOn(context.Background(), platform.Linux, tt.args, stdout, stderr, testOptions(tt.env))
			require.Equal(t, tt.code, code, stderr.String())
			if tt.contains != "" {
				assert.Contains(t, stdout.String(), tt.contains)
			}
		})
	}
}

func TestRunOn_TracingToStderr(t *testing.T) {
	t.Setenv("ENVTOOLS_CONFIG", "")

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := runOn(context.Background(), platform.Linux, []string{"-tracing-export", "stdout", "cpus"}, stdout, stderr, testOptions(nil))
	require.Equal(t, 0, code)
	assert.Equal(t, "8\n", stdout.String())
	assert.Contains(t, stderr.String(), "envtools.cpus_per_node")
}
