package cron

import (
	"context"

	"gorm.io/gorm"
)

// Report summarizes one job run.
type Report struct {
	Scanned int
	Swept   int
	Skipped int
}

// Job represents a scheduled task that runs inside the cron worker. A job
// returns the rows it handled even when some of them failed.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
