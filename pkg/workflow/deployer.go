package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deflow/deflow/pkg/eventbus"
	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/protocol"
	"github.com/deflow/deflow/pkg/registry"
	"github.com/deflow/deflow/pkg/scheduler"
)

var (
	ErrNoTriggerNodes       = errors.New("no trigger nodes found in the flow")
	ErrInvalidDeployRequest = errors.New("triggerId and flowId are required")
)

// triggerAliases maps the trigger IDs used by trigger configs to registry
// identifiers. Unknown IDs are looked up in the registry as given.
var triggerAliases = map[string]string{
	"cron-job":     "CronJobTrigger",
	"cron":         "CronJobTrigger",
	"http-trigger": "HTTPTrigger",
	"http":         "HTTPTrigger",
}

// FlowRunner runs a flow from one of its trigger nodes.
type FlowRunner interface {
	ExecuteFlow(ctx context.Context, rawPayload map[string]any, triggerNodeID, flowID string) error
}

type DeployTriggerRequest struct {
	TriggerID string         `json:"triggerId" validate:"required"`
	FlowID    string         `json:"flowId"    validate:"required"`
	NodeID    string         `json:"nodeId,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Active    *bool          `json:"active,omitempty"`
}

type DeployResult struct {
	Status    string `json:"status"`
	TriggerID string `json:"triggerId"`
	FlowID    string `json:"flowId"`
	JobName   string `json:"jobName,omitempty"`
}

// Deployer starts and stops the scheduled jobs of job triggers.
type Deployer struct {
	logger    *slog.Logger
	registry  *registry.Registry
	nodes     persistence.FlowNodeRepository
	configs   persistence.TriggerConfigRepository
	scheduler *scheduler.Scheduler
	runner    FlowRunner
	publisher eventbus.EventPublisher
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type DeployerOption func(*Deployer)

func WithDeployEventPublisher(publisher eventbus.EventPublisher) DeployerOption {
	return func(d *Deployer) {
		d.publisher = publisher
	}
}

func NewDeployer(
	logger *slog.Logger,
	registry *registry.Registry,
	nodes persistence.FlowNodeRepository,
	configs persistence.TriggerConfigRepository,
	sched *scheduler.Scheduler,
	runner FlowRunner,
	opts ...DeployerOption,
) *Deployer {
	d := &Deployer{
		logger:    logger.With("module", "trigger_deployer"),
		registry:  registry,
		nodes:     nodes,
		configs:   configs,
		scheduler: sched,
		runner:    runner,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// DeployFlow starts a job for every job trigger of the flow, replacing any
// job already registered under the same name. The first failure aborts the
// call and is returned.
func (d *Deployer) DeployFlow(ctx context.Context, flowID string) ([]string, error) {
	logger := d.logger.With("flow_id", flowID)

	triggers, err := d.triggerNodes(ctx, flowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load trigger nodes", "error", err)

		return nil, err
	}

	deployed := make([]string, 0, len(triggers))

	for _, node := range triggers {
		nodeLogger := logger.With("node_id", node.ID, "node_name", node.Name)

		jt, err := d.jobTrigger(node)
		if err != nil {
			nodeLogger.ErrorContext(ctx, "Failed to start job trigger", "error", err)

			return deployed, err
		}

		if jt == nil {
			continue
		}

		handle, err := jt.Execute(d.flowCallback(node.ID, flowID), node.ID)
		if err != nil {
			nodeLogger.ErrorContext(ctx, "Failed to start job trigger", "error", err)

			return deployed, fmt.Errorf("failed to build job for node %s: %w", node.ID, err)
		}

		if err := d.swapJob(ctx, nodeLogger, node.ID, handle); err != nil {
			return deployed, err
		}

		deployed = append(deployed, handle.JobName)

		nodeLogger.InfoContext(ctx, "Job trigger started", "job_name", handle.JobName)
		d.publish(ctx, events.TriggerDeployed{
			BaseEvent: events.NewBaseEvent(uuid.NewString(), events.TriggerDeployedEvent, flowID),
			TriggerID: node.ID,
			NodeID:    node.ID,
			JobName:   handle.JobName,
		})
	}

	return deployed, nil
}

// swapJob replaces any job registered under the handle's name and starts the
// new one while holding the trigger node's lock.
func (d *Deployer) swapJob(ctx context.Context, logger *slog.Logger, nodeID string, handle *protocol.JobHandle) error {
	defer d.lock(nodeID)()

	if d.scheduler.JobExists(handle.JobName) {
		logger.InfoContext(ctx, "Job trigger already exists, replacing", "job_name", handle.JobName)

		if err := d.scheduler.DeleteJob(handle.JobName); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
			return err
		}
	}

	if err := d.scheduler.AddJob(handle.JobName, handle.Job); err != nil {
		logger.ErrorContext(ctx, "Failed to register job", "job_name", handle.JobName, "error", err)

		return fmt.Errorf("failed to register job %s: %w", handle.JobName, err)
	}

	handle.Job.Start()

	return nil
}

// UndeployFlow stops the jobs of the flow's job triggers. A job that is not
// running is logged and skipped.
func (d *Deployer) UndeployFlow(ctx context.Context, flowID string) ([]string, error) {
	logger := d.logger.With("flow_id", flowID)

	triggers, err := d.triggerNodes(ctx, flowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load trigger nodes", "error", err)

		return nil, err
	}

	stopped := make([]string, 0, len(triggers))

	for _, node := range triggers {
		nodeLogger := logger.With("node_id", node.ID, "node_name", node.Name)

		jt, err := d.jobTrigger(node)
		if err != nil {
			nodeLogger.ErrorContext(ctx, "Failed to stop job trigger", "error", err)

			return stopped, err
		}

		if jt == nil {
			continue
		}

		jobName := jt.JobName(node.ID)

		unlock := d.lock(node.ID)
		err = d.scheduler.DeleteJob(jobName)
		unlock()

		if err != nil {
			if errors.Is(err, scheduler.ErrJobNotFound) {
				nodeLogger.WarnContext(ctx, "Job trigger does not exist in scheduler", "job_name", jobName)

				continue
			}

			return stopped, err
		}

		stopped = append(stopped, jobName)

		nodeLogger.InfoContext(ctx, "Job trigger stopped", "job_name", jobName)
		d.publish(ctx, events.TriggerUndeployed{
			BaseEvent: events.NewBaseEvent(uuid.NewString(), events.TriggerUndeployedEvent, flowID),
			TriggerID: node.ID,
			NodeID:    node.ID,
			JobName:   jobName,
		})
	}

	return stopped, nil
}

func (d *Deployer) triggerNodes(ctx context.Context, flowID string) ([]*models.FlowNode, error) {
	triggers, err := d.nodes.GetByFlowAndCategory(ctx, flowID, models.CategoryTypeTrigger)
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger nodes of flow %s: %w", flowID, err)
	}

	if len(triggers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTriggerNodes, flowID)
	}

	return triggers, nil
}

// jobTrigger constructs node and returns it as a job trigger, or nil when it
// fires from inbound calls only.
func (d *Deployer) jobTrigger(node *models.FlowNode) (protocol.JobTrigger, error) {
	instance, err := d.registry.Create(node.Name, node.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create trigger %s: %w", node.Name, err)
	}

	if instance == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotRegistered, node.Name)
	}

	if instance.Category != models.CategoryTypeTrigger {
		return nil, fmt.Errorf("%w: %s", ErrNotTriggerNode, node.Name)
	}

	jt, ok := protocol.IsJobTrigger(instance.Node())
	if !ok {
		return nil, nil
	}

	return jt, nil
}

func (d *Deployer) flowCallback(nodeID, flowID string) protocol.FlowCallback {
	return func(ctx context.Context, payload map[string]any) error {
		return d.runner.ExecuteFlow(ctx, payload, nodeID, flowID)
	}
}

// DeployTrigger binds a trigger to a flow and, for triggers that can start
// from a config, replaces the job recorded for it. Only request validation
// fails the call: bookkeeping and start errors are logged so that a deploy is
// always attempted.
func (d *Deployer) DeployTrigger(ctx context.Context, req DeployTriggerRequest) (*DeployResult, error) {
	if req.TriggerID == "" || req.FlowID == "" {
		return nil, ErrInvalidDeployRequest
	}

	unlock := d.lock(req.TriggerID)
	defer unlock()

	logger := d.logger.With("trigger_id", req.TriggerID, "flow_id", req.FlowID)
	result := &DeployResult{Status: "deployed", TriggerID: req.TriggerID, FlowID: req.FlowID}

	cfg := d.upsertConfig(ctx, logger, req)

	identifier, params := d.triggerIdentity(ctx, cfg)

	instance, err := d.registry.Create(identifier, params)
	if err != nil || instance == nil {
		logger.ErrorContext(ctx, "Unknown trigger type", "error", err)

		return result, nil
	}

	starter, ok := instance.Node().(protocol.JobStarter)
	if !ok {
		return result, nil
	}

	d.stopActiveJob(ctx, logger, cfg)

	if !cfg.Active {
		logger.InfoContext(ctx, "Trigger config is inactive, not starting a job")

		return result, nil
	}

	handle, err := starter.StartFor(req.TriggerID, d.configCallback(req.TriggerID))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start trigger job", "error", err)

		return result, nil
	}

	if err := d.scheduler.AddJob(handle.JobName, handle.Job); err != nil {
		logger.ErrorContext(ctx, "Failed to register trigger job", "job_name", handle.JobName, "error", err)

		return result, nil
	}

	handle.Job.Start()

	cfg.ActiveJobName = handle.JobName
	d.saveConfig(ctx, logger, cfg)

	result.JobName = handle.JobName

	logger.InfoContext(ctx, "Trigger deployed", "job_name", handle.JobName)
	d.publish(ctx, events.TriggerDeployed{
		BaseEvent: events.NewBaseEvent(uuid.NewString(), events.TriggerDeployedEvent, req.FlowID),
		TriggerID: req.TriggerID,
		NodeID:    cfg.NodeID,
		JobName:   handle.JobName,
	})

	return result, nil
}

func (d *Deployer) upsertConfig(ctx context.Context, logger *slog.Logger, req DeployTriggerRequest) *models.TriggerConfig {
	existing, err := d.configs.GetByTriggerID(ctx, req.TriggerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load trigger config", "error", err)
	}

	cfg := existing
	if cfg == nil {
		cfg = &models.TriggerConfig{TriggerID: req.TriggerID, CreatedAt: d.now().UTC()}
	}

	cfg.FlowID = req.FlowID
	cfg.NodeID = req.NodeID
	cfg.Params = req.Params
	cfg.Active = true

	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}

	if req.Active != nil {
		cfg.Active = *req.Active
	}

	d.saveConfig(ctx, logger, cfg)

	return cfg
}

// stopActiveJob removes the job recorded on cfg, which may belong to a
// previous process, and clears the record.
func (d *Deployer) stopActiveJob(ctx context.Context, logger *slog.Logger, cfg *models.TriggerConfig) {
	if cfg.ActiveJobName == "" {
		return
	}

	if err := d.scheduler.DeleteJob(cfg.ActiveJobName); err != nil {
		logger.DebugContext(ctx, "Previous job not running", "job_name", cfg.ActiveJobName, "error", err)
	} else {
		logger.InfoContext(ctx, "Previous job stopped", "job_name", cfg.ActiveJobName)
	}

	cfg.ActiveJobName = ""
	d.saveConfig(ctx, logger, cfg)
}

func (d *Deployer) saveConfig(ctx context.Context, logger *slog.Logger, cfg *models.TriggerConfig) {
	cfg.UpdatedAt = d.now().UTC()

	if err := d.configs.Save(ctx, cfg); err != nil {
		logger.ErrorContext(ctx, "Failed to save trigger config", "error", err)
	}
}

// configCallback reloads the trigger config on every run so the job follows
// rebinding to another flow or node.
func (d *Deployer) configCallback(triggerID string) protocol.FlowCallback {
	return func(ctx context.Context, payload map[string]any) error {
		cfg, err := d.configs.GetByTriggerID(ctx, triggerID)
		if err != nil {
			return fmt.Errorf("failed to load trigger config %s: %w", triggerID, err)
		}

		if cfg == nil || cfg.FlowID == "" {
			d.logger.WarnContext(ctx, "No trigger config bound, skipping run", "trigger_id", triggerID)

			return nil
		}

		return d.runner.ExecuteFlow(ctx, payload, cfg.TargetNodeID(), cfg.FlowID)
	}
}

// UndeployTrigger stops the job recorded for triggerID and marks the config
// inactive.
func (d *Deployer) UndeployTrigger(ctx context.Context, triggerID string) error {
	unlock := d.lock(triggerID)
	defer unlock()

	logger := d.logger.With("trigger_id", triggerID)

	cfg, err := d.configs.GetByTriggerID(ctx, triggerID)
	if err != nil {
		return fmt.Errorf("failed to load trigger config %s: %w", triggerID, err)
	}

	if cfg == nil {
		return fmt.Errorf("%w: %s", persistence.ErrTriggerConfigNotFound, triggerID)
	}

	jobName := cfg.ActiveJobName
	if jobName != "" {
		if err := d.scheduler.DeleteJob(jobName); err != nil {
			logger.WarnContext(ctx, "Trigger job does not exist in scheduler", "job_name", jobName)
		}
	}

	cfg.ActiveJobName = ""
	cfg.Active = false
	cfg.UpdatedAt = d.now().UTC()

	if err := d.configs.Save(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save trigger config %s: %w", triggerID, err)
	}

	logger.InfoContext(ctx, "Trigger undeployed", "job_name", jobName)
	d.publish(ctx, events.TriggerUndeployed{
		BaseEvent: events.NewBaseEvent(uuid.NewString(), events.TriggerUndeployedEvent, cfg.FlowID),
		TriggerID: triggerID,
		NodeID:    cfg.NodeID,
		JobName:   jobName,
	})

	return nil
}

// RestoreTriggers redeploys every active trigger config, typically at process
// start. It returns the number of configs redeployed.
func (d *Deployer) RestoreTriggers(ctx context.Context) (int, error) {
	configs, err := d.configs.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load trigger configs: %w", err)
	}

	restored := 0

	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}

		active := true

		_, err := d.DeployTrigger(ctx, DeployTriggerRequest{
			TriggerID: cfg.TriggerID,
			FlowID:    cfg.FlowID,
			NodeID:    cfg.NodeID,
			Params:    cfg.Params,
			Active:    &active,
		})
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to restore trigger", "trigger_id", cfg.TriggerID, "error", err)

			continue
		}

		restored++
	}

	d.logger.InfoContext(ctx, "Trigger configs restored", "count", restored)

	return restored, nil
}

func (d *Deployer) lock(triggerID string) func() {
	d.mu.Lock()

	l, ok := d.locks[triggerID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[triggerID] = l
	}

	d.mu.Unlock()

	l.Lock()

	return l.Unlock
}

// triggerIdentity picks the registry identifier and params for cfg. A config
// bound to a trigger node uses that node's name, with the config params
// overriding the node params; otherwise the trigger ID is resolved through
// the alias table.
func (d *Deployer) triggerIdentity(ctx context.Context, cfg *models.TriggerConfig) (string, map[string]any) {
	if cfg.NodeID != "" {
		node, err := d.nodes.GetByID(ctx, cfg.NodeID)
		if err == nil && node != nil && node.IsTrigger() && node.FlowID == cfg.FlowID {
			params := make(map[string]any, len(node.Params)+len(cfg.Params))
			for k, v := range node.Params {
				params[k] = v
			}

			for k, v := range cfg.Params {
				params[k] = v
			}

			return node.Name, params
		}
	}

	return resolveTriggerIdentifier(cfg.TriggerID), cfg.Params
}

func resolveTriggerIdentifier(triggerID string) string {
	if identifier, ok := triggerAliases[strings.ToLower(triggerID)]; ok {
		return identifier
	}

	return triggerID
}

func (d *Deployer) publish(ctx context.Context, event eventbus.Event) {
	if d.publisher == nil {
		return
	}

	if err := d.publisher.Publish(ctx, uuid.NewString(), event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
