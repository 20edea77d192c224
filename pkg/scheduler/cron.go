package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultLockTTL bounds how long a tick lock is held across replicas.
const DefaultLockTTL = time.Minute

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec parses a cron expression with an optional leading seconds field.
// Descriptors such as "@every 5s" are accepted.
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	return schedule, nil
}

// TickLock grants at most one holder per key for ttl.
type TickLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Option func(*CronJob)

func WithLogger(logger *slog.Logger) Option {
	return func(j *CronJob) {
		j.logger = logger
	}
}

// WithTickLock makes each tick acquire lock under lockKey plus the tick time
// before running, so only one replica fires a given tick.
func WithTickLock(lock TickLock, lockKey string) Option {
	return func(j *CronJob) {
		j.lock = lock
		j.lockKey = lockKey
	}
}

// CronJob runs fn on a cron schedule. It implements protocol.Job.
type CronJob struct {
	name    string
	spec    string
	fn      func(ctx context.Context)
	logger  *slog.Logger
	lock    TickLock
	lockKey string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewCronJob(name, spec string, fn func(ctx context.Context), opts ...Option) (*CronJob, error) {
	job := &CronJob{
		name:   name,
		spec:   spec,
		fn:     fn,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(job)
	}

	job.logger = job.logger.With("job_name", name, "schedule", spec)

	cronLogger := &slogCronLogger{logger: job.logger}
	job.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	_, err := job.cron.AddFunc(spec, job.tick)
	if err != nil {
		return nil, fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	return job, nil
}

func (j *CronJob) Name() string     { return j.name }
func (j *CronJob) Schedule() string { return j.spec }

func (j *CronJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}

	j.cron.Start()
	j.running = true
	j.logger.Info("Cron job started")
}

func (j *CronJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}

	j.cron.Stop()
	j.running = false
	j.logger.Info("Cron job stopped")
}

func (j *CronJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.running
}

func (j *CronJob) tick() {
	ctx := context.Background()

	if j.lock != nil {
		key := fmt.Sprintf("%s:%d", j.lockKey, time.Now().Truncate(time.Second).Unix())

		acquired, err := j.lock.Acquire(ctx, key, DefaultLockTTL)
		if err != nil {
			j.logger.ErrorContext(ctx, "Failed to acquire tick lock", "error", err)

			return
		}

		if !acquired {
			j.logger.DebugContext(ctx, "Tick already taken by another replica")

			return
		}
	}

	j.fn(ctx)
}

type slogCronLogger struct {
	logger *slog.Logger
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
