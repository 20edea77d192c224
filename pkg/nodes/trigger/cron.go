package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
	"github.com/deflow/deflow/pkg/scheduler"
)

const (
	CronJobTriggerName = "CronJobTrigger"
	CronJobTriggerID   = "cron-job"
	CronJobTriggerType = "cron"
	ParamTime          = "time"
	DefaultCronSpec    = "*/10 * * * * *"
)

// CronOptions carries the process-level collaborators of cron triggers.
type CronOptions struct {
	Logger      *slog.Logger
	Lock        scheduler.TickLock
	Environment string
}

// CronJobTrigger fires its flow on a cron schedule given by the "time" param.
type CronJobTrigger struct {
	spec string
	opts CronOptions
	now  func() time.Time
}

// NewCronJobTriggerConstructor binds opts into a registry constructor.
func NewCronJobTriggerConstructor(opts CronOptions) protocol.Constructor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(p map[string]any) (protocol.Node, error) {
		spec := params.String(p, ParamTime, DefaultCronSpec)
		if _, err := scheduler.ParseSpec(spec); err != nil {
			return nil, err
		}

		return &CronJobTrigger{spec: spec, opts: opts, now: time.Now}, nil
	}
}

func (t *CronJobTrigger) Name() string { return CronJobTriggerName }

func (t *CronJobTrigger) Description() string {
	return "Runs the flow on a cron schedule"
}

func (t *CronJobTrigger) Schedule() string { return t.spec }

// ValidatePayload accepts any payload; scheduled runs build their own.
func (t *CronJobTrigger) ValidatePayload(_ context.Context, raw map[string]any) (*models.Message, error) {
	payload := make(map[string]any, len(raw))
	for k, v := range raw {
		payload[k] = v
	}

	return models.NewMessage(payload, triggerMetadata(CronJobTriggerID, CronJobTriggerType)), nil
}

func (t *CronJobTrigger) IsJobTrigger() bool { return true }

func (t *CronJobTrigger) JobName(nodeID string) string {
	return "cron-job-" + nodeID
}

// Execute builds the job for a flow-node deployment. The name is stable per
// node so a redeploy replaces the previous job.
func (t *CronJobTrigger) Execute(callback protocol.FlowCallback, nodeID string) (*protocol.JobHandle, error) {
	name := t.JobName(nodeID)

	return t.newJob(name, name, callback)
}

// StartFor builds a freshly named job for a trigger config deployment.
func (t *CronJobTrigger) StartFor(triggerID string, callback protocol.FlowCallback) (*protocol.JobHandle, error) {
	name := fmt.Sprintf("%s-job-%d", triggerID, t.now().UnixNano())

	return t.newJob(name, triggerID, callback)
}

func (t *CronJobTrigger) newJob(name, lockKey string, callback protocol.FlowCallback) (*protocol.JobHandle, error) {
	logger := t.opts.Logger.With("job_name", name)

	opts := []scheduler.Option{scheduler.WithLogger(logger)}
	if t.opts.Lock != nil {
		opts = append(opts, scheduler.WithTickLock(t.opts.Lock, lockKey))
	}

	job, err := scheduler.NewCronJob(name, t.spec, t.runner(name, logger, callback), opts...)
	if err != nil {
		return nil, err
	}

	return &protocol.JobHandle{JobName: name, Job: job}, nil
}

// runner returns the tick function of one job. Run counters are per job.
func (t *CronJobTrigger) runner(name string, logger *slog.Logger, callback protocol.FlowCallback) func(ctx context.Context) {
	var (
		runCount atomic.Int64
		previous atomic.Pointer[time.Time]
	)

	return func(ctx context.Context) {
		startedAt := t.now().UTC()
		count := runCount.Add(1)

		var previousRunAt any
		if p := previous.Swap(&startedAt); p != nil {
			previousRunAt = p.Format(time.RFC3339Nano)
		}

		payload := map[string]any{
			"jobName":       name,
			"runId":         fmt.Sprintf("run_%d", startedAt.UnixMilli()),
			"runCount":      count,
			"startedAt":     startedAt.Format(time.RFC3339Nano),
			"previousRunAt": previousRunAt,
			"schedule":      t.spec,
			"context":       t.runContext(),
		}

		if err := callback(ctx, payload); err != nil {
			logger.ErrorContext(ctx, "Scheduled flow run failed", "run_count", count, "error", err)
		}
	}
}

func (t *CronJobTrigger) runContext() map[string]any {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}

	return map[string]any{
		"env":  t.opts.Environment,
		"host": host,
	}
}
