package envtools_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velmie/x/envx"
	"go.uber.org/mock/gomock"

	. "github.com/velmie/x/envtools"
	. "github.com/velmie/x/envtools/mock"
	"github.com/velmie/x/envtools/platform"
)

func TestCPUsPerNode(t *testing.T) {
	type setupMocks func(m *MockRunner)

	tests := []struct {
		name       string
		platform   platform.Platform
		env        map[string]string
		setupMocks setupMocks
		expected   int
		err        error
	}{
		{
			name:     "darwin sysctl",
			platform: platform.Darwin,
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "sysctl", "hw.ncpu").Return("hw.ncpu: 12\n", nil)
			},
			expected: 12,
		},
		{
			name:     "darwin ignores SLURM",
			platform: platform.Darwin,
			env:      map[string]string{EnvJobID: "1", EnvCPUsOnNode: "3"},
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "sysctl", "hw.ncpu").Return("hw.ncpu: 12\n", nil)
			},
			expected: 12,
		},
		{
			name:     "darwin unexpected output",
			platform: platform.Darwin,
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "sysctl", "hw.ncpu").Return("unknown oid 'hw.ncpu'", nil)
			},
			err: ErrParse,
		},
		{
			name:     "linux lscpu fallback",
			platform: platform.Linux,
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "lscpu").Return(lscpuOutput, nil)
			},
			expected: 8,
		},
		{
			name:     "linux lscpu minimal output",
			platform: platform.Linux,
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "lscpu").Return("CPU(s):    8", nil)
			},
			expected: 8,
		},
		{
			name:     "linux inside job uses SLURM",
			platform: platform.Linux,
			env:      map[string]string{EnvJobIDLegacy: "7", EnvCPUsOnNode: "128"},
			expected: 128,
		},
		{
			name:     "linux inside job without SLURM cpu count",
			platform: platform.Linux,
			env:      map[string]string{EnvJobIDLegacy: "7"},
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "lscpu").Return(lscpuOutput, nil)
			},
			expected: 8,
		},
		{
			name:     "linux cpu variable outside job is ignored",
			platform: platform.Linux,
			env:      map[string]string{EnvCPUsOnNode: "128"},
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "lscpu").Return(lscpuOutput, nil)
			},
			expected: 8,
		},
		{
			name:     "linux invalid SLURM cpu count",
			platform: platform.Linux,
			env:      map[string]string{EnvJobIDLegacy: "7", EnvCPUsOnNode: "0"},
			err:      envx.ErrInvalidValue,
		},
		{
			name:     "linux no matching line",
			platform: platform.Linux,
			setupMocks: func(m *MockRunner) {
				m.EXPECT().Run(gomock.Any(), "lscpu").Return("Architecture: aarch64\nOn-line CPU(s) list: 0-3\n", nil)
			},
			err: ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			runner := NewMockRunner(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(runner)
			}

			r := newReporter(t, tt.platform, tt.env, WithRunner(runner))
			n, err := r.CPUsPerNode(context.Background())
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestCPUsPerNode_CommandFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runErr := errors.New("exec: \"lscpu\": executable file not found in $PATH")
	runner := NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), "lscpu").Return("", runErr)

	r := newReporter(t, platform.Linux, nil, WithRunner(runner))
	_, err := r.CPUsPerNode(context.Background())
	require.ErrorIs(t, err, runErr)
	assert.Contains(t, err.Error(), "cannot run lscpu")
}
