// Package envtools answers "what am I running on?" for jobs on shared HPC clusters.
//
// It identifies the cluster, counts the CPUs of the current node, detects whether the
// process runs inside a SLURM allocation and renders all of that as a small text report.
// Every lookup reads the environment at call time through an envx.Source, so
// tests can supply synthetic snapshots instead of mutating the real process state.
package envtools
