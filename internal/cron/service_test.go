package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/metrics"
)

type testJob struct {
	name   string
	report Report
	err    error
	runs   int
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(context.Context) (Report, error) {
	j.runs++
	return j.report, j.err
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	a, b := &testJob{name: "a"}, &testJob{name: "b"}
	registry := NewRegistry(a, nil)
	registry.Register(b)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, a, jobs[0])
	assert.Same(t, b, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(reg)
	ok := &testJob{name: "sweep-ok", report: Report{Scanned: 3, Swept: 2, Skipped: 1}}
	failing := &testJob{name: "sweep-fail", err: errors.New("boom")}

	leader, err := NewLeaderLock(lock.NewMemoryLocker(), "", 0)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   discardLogger(),
		Registry: NewRegistry(ok, failing),
		Lock:     leader,
		Metrics:  cronMetrics,
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)

	families, err := reg.Gather()
	require.NoError(t, err)
	failures := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "job_failure" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "job" {
					failures[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Len(t, failures, 1)
	assert.Equal(t, float64(1), failures["sweep-fail"])
}

func TestRunOnceSkipsWhenLeaderHeldElsewhere(t *testing.T) {
	locker := lock.NewMemoryLocker()
	lease, err := locker.Obtain(context.Background(), defaultLeaderKey, 0, time.Minute)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	job := &testJob{name: "sweep"}
	leader, err := NewLeaderLock(locker, "", 0)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{Logger: discardLogger(), Registry: NewRegistry(job), Lock: leader})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunOnceReleasesLeaderLock(t *testing.T) {
	locker := lock.NewMemoryLocker()
	leader, err := NewLeaderLock(locker, "cron:test", time.Minute)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{Logger: discardLogger(), Registry: NewRegistry(&testJob{name: "a"}), Lock: leader})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.False(t, locker.Held("cron:test"))
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: discardLogger()})
	assert.Error(t, err)
	_, err = NewLeaderLock(nil, "k", time.Second)
	assert.Error(t, err)
}
