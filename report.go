package envtools

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Row labels of the report
const (
	LabelPlatform    = "platform"
	LabelCluster     = "cluster"
	LabelHostname    = "hostname"
	LabelNode        = "node"
	LabelPartition   = "partition"
	LabelCPUsPerNode = "#cpus/node"

	LabelJobID       = "job id"
	LabelJobName     = "job name"
	LabelNumNodes    = "#nodes"
	LabelNumTasks    = "#tasks"
	LabelCPUsPerTask = "#cpus per task"
	LabelGPUs        = "#gpus in job"

	jobSeparator = "\nJob info:\n"
)

// GeneralRows collects the rows of the general table.
//
// An unknown cluster is reported with a hostname row rather than failing, every other
// lookup error aborts.
func (r *Reporter) GeneralRows(ctx context.Context) ([]Row, error) {
	rows := []Row{{Label: LabelPlatform, Value: r.platform.String()}}

	knownCluster := true
	cluster, err := r.Cluster(ctx, false)
	switch {
	case err == nil:
		rows = append(rows, Row{Label: LabelCluster, Value: cluster})
	case errors.Is(err, ErrUnsupportedEnvironment):
		knownCluster = false
		host, hostErr := r.host()
		if hostErr != nil {
			return nil, hostErr
		}
		rows = append(rows, Row{Label: LabelHostname, Value: host + " (unknown cluster or stand-alone machine)"})
	default:
		return nil, err
	}

	inJob, err := r.IsSlurmJob()
	if err != nil {
		return nil, err
	}
	switch {
	case inJob:
		partition, err := r.Partition()
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Label: LabelPartition, Value: partition})
	case knownCluster:
		host, err := r.host()
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Label: LabelNode, Value: "login node (" + host + ")"})
	}

	cpus, err := r.CPUsPerNode(ctx)
	if err != nil {
		return nil, err
	}
	rows = append(rows, Row{Label: LabelCPUsPerNode, Value: strconv.Itoa(cpus)})

	return rows, nil
}

// Rows returns the rows of the job table.
func (j *JobInfo) Rows() []Row {
	return []Row{
		{Label: LabelJobID, Value: j.ID},
		{Label: LabelJobName, Value: j.Name},
		{Label: LabelPartition, Value: j.Partition},
		{Label: LabelNumNodes, Value: strconv.Itoa(j.NumNodes)},
		{Label: LabelNumTasks, Value: strconv.Itoa(j.NumTasks)},
		{Label: LabelCPUsPerTask, Value: strconv.Itoa(j.CPUsPerTask)},
		{Label: LabelGPUs, Value: strconv.Itoa(j.GPUs)},
	}
}

// Info renders the report: the general table, followed by the job table when running
// inside a SLURM job.
func (r *Reporter) Info(ctx context.Context) (report string, err error) {
	ctx, span := r.tracer.Start(ctx, "envtools.info")
	defer func() { finishSpan(span, err) }()

	general, err := r.GeneralRows(ctx)
	if err != nil {
		return "", err
	}

	sb := new(strings.Builder)
	sb.WriteString(renderTable(general))

	inJob, err := r.IsSlurmJob()
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Bool("envtools.slurm_job", inJob))
	if inJob {
		job, err := r.Job()
		if err != nil {
			return "", err
		}
		sb.WriteString(jobSeparator)
		sb.WriteString(renderTable(job.Rows()))
	}

	return sb.String(), nil
}
