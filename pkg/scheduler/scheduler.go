// Package scheduler keeps named background jobs and runs cron schedules.
package scheduler

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/deflow/deflow/pkg/protocol"
)

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
)

// Scheduler is a process-local registry of named jobs.
type Scheduler struct {
	logger *slog.Logger
	mu     sync.Mutex
	jobs   map[string]protocol.Job
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With("module", "scheduler"),
		jobs:   make(map[string]protocol.Job),
	}
}

// AddJob registers job under name. It does not start the job.
func (s *Scheduler) AddJob(name string, job protocol.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return ErrJobExists
	}

	s.jobs[name] = job
	s.logger.Debug("Job added", "job_name", name)

	return nil
}

func (s *Scheduler) JobExists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[name]

	return exists
}

func (s *Scheduler) Job(name string) (protocol.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]

	return job, exists
}

// DeleteJob stops and removes the job registered under name.
func (s *Scheduler) DeleteJob(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if !exists {
		return ErrJobNotFound
	}

	job.Stop()
	s.logger.Debug("Job deleted", "job_name", name)

	return nil
}

func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// StopAll stops and removes every job.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]protocol.Job)
	s.mu.Unlock()

	for name, job := range jobs {
		job.Stop()
		s.logger.Debug("Job stopped", "job_name", name)
	}
}
