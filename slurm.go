package envtools

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/velmie/x/envx"
)

// SLURM variables read by envtools
const (
	EnvJobID          = "SLURM_JOB_ID"
	EnvJobIDLegacy    = "SLURM_JOBID"
	EnvJobName        = "SLURM_JOB_NAME"
	EnvJobPartition   = "SLURM_JOB_PARTITION"
	EnvJobNumNodes    = "SLURM_JOB_NUM_NODES"
	EnvNumTasks       = "SLURM_NTASKS"
	EnvCPUsPerTask    = "SLURM_CPUS_PER_TASK"
	EnvCPUsOnNode     = "SLURM_CPUS_ON_NODE"
	EnvJobCPUsPerNode = "SLURM_JOB_CPUS_PER_NODE"
	EnvGPUsOnNode     = "SLURM_GPUS_ON_NODE"
)

// JobInfo holds what SLURM tells about the current allocation.
type JobInfo struct {
	ID          string
	Name        string
	Partition   string
	NumNodes    int
	NumTasks    int
	CPUsPerTask int
	GPUs        int
}

// IsSlurmJob reports whether the process runs inside a SLURM job.
// Only the presence of the job id matters, an empty value still counts.
func (r *Reporter) IsSlurmJob() (bool, error) {
	return r.present(EnvJobIDLegacy, EnvJobID)
}

// Partition returns the partition of the current job.
// An empty string denotes a login or interactive node.
func (r *Reporter) Partition() (string, error) {
	v, err := r.variable(EnvJobPartition)
	if err != nil {
		return "", err
	}
	return v.Val, nil
}

// HasGPU reports whether GPUs were allocated to the job on this node.
func (r *Reporter) HasGPU() (bool, error) {
	inJob, err := r.IsSlurmJob()
	if err != nil {
		return false, err
	}
	if !inJob {
		return false, newError("detect gpu", ErrMissingContext, "GPU presence is only known inside a SLURM job")
	}
	v, err := r.variable(EnvGPUsOnNode)
	if err != nil {
		return false, err
	}
	n, err := v.MinInt(0).Int()
	if err != nil {
		return false, fmt.Errorf("cannot detect gpu: %w", err)
	}
	return n > 0, nil
}

// JobCPUs returns the total number of CPUs allocated to the current job over all of its nodes.
func (r *Reporter) JobCPUs() (int, error) {
	inJob, err := r.IsSlurmJob()
	if err != nil {
		return 0, err
	}
	if !inJob {
		return 0, newError("count job cpus", ErrMissingContext, "the CPU allocation is only known inside a SLURM job")
	}
	v, err := r.variable(EnvJobCPUsPerNode)
	if err != nil {
		return 0, err
	}
	val, err := v.Required().NotEmpty().String()
	if err != nil {
		return 0, fmt.Errorf("cannot count job cpus: %w", err)
	}
	return ParseCPUsPerNode(val)
}

// Job reads the job description from the environment.
// The GPU count defaults to zero, every other field is required.
func (r *Reporter) Job() (*JobInfo, error) {
	inJob, err := r.IsSlurmJob()
	if err != nil {
		return nil, err
	}
	if !inJob {
		return nil, newError("read job info", ErrMissingContext, "%s is not set", EnvJobID)
	}

	vars := make(map[string]*envx.Variable)
	for _, name := range []string{
		EnvJobID, EnvJobIDLegacy, EnvJobName, EnvJobPartition,
		EnvJobNumNodes, EnvNumTasks, EnvCPUsPerTask, EnvGPUsOnNode,
	} {
		if vars[name], err = r.variable(name); err != nil {
			return nil, fmt.Errorf("cannot read SLURM job info: %w", err)
		}
	}

	j := &JobInfo{}
	id := vars[EnvJobID]
	if !id.Exist {
		id = vars[EnvJobIDLegacy]
	}

	err = envx.Supply(
		envx.Set(&j.ID, id.Required().String),
		envx.Set(&j.Name, vars[EnvJobName].Required().String),
		envx.Set(&j.Partition, vars[EnvJobPartition].Required().String),
		envx.Set(&j.NumNodes, vars[EnvJobNumNodes].Required().NotEmpty().MinInt(1).Int),
		envx.Set(&j.NumTasks, vars[EnvNumTasks].Required().NotEmpty().MinInt(1).Int),
		envx.Set(&j.CPUsPerTask, vars[EnvCPUsPerTask].Required().NotEmpty().MinInt(1).Int),
		envx.Set(&j.GPUs, vars[EnvGPUsOnNode].Default("0").MinInt(0).Int),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot read SLURM job info: %w", err)
	}
	return j, nil
}

var cpusPerNodeGroup = regexp.MustCompile(`^(\d+)(?:\(x(\d+)\))?$`)

// ParseCPUsPerNode sums a SLURM per node CPU list such as "72(x2),36".
// Counts which do not fit into an int are rejected with ErrParse.
func ParseCPUsPerNode(s string) (int, error) {
	total := 0
	for _, group := range strings.Split(s, ",") {
		m := cpusPerNodeGroup.FindStringSubmatch(strings.TrimSpace(group))
		if m == nil {
			return 0, newError("count job cpus", ErrParse, "unexpected CPU list %q", s)
		}
		cpus, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, newError("count job cpus", ErrParse, "CPU count out of range in %q", s)
		}
		nodes := 1
		if m[2] != "" {
			if nodes, err = strconv.Atoi(m[2]); err != nil {
				return 0, newError("count job cpus", ErrParse, "node count out of range in %q", s)
			}
		}
		if nodes != 0 && cpus > (math.MaxInt-total)/nodes {
			return 0, newError("count job cpus", ErrParse, "CPU list %q overflows", s)
		}
		total += cpus * nodes
	}
	return total, nil
}
