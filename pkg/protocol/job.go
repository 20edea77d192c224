package protocol

import "context"

// FlowCallback starts a flow run with the given raw payload.
type FlowCallback func(ctx context.Context, payload map[string]any) error

// Job is a scheduled background task.
type Job interface {
	Start()
	Stop()
	Running() bool
}

// JobHandle couples a job with the name it is registered under.
type JobHandle struct {
	JobName string
	Job     Job
}

// JobTrigger is implemented by triggers that fire on their own schedule
// rather than on an inbound request.
type JobTrigger interface {
	IsJobTrigger() bool
	// JobName is the deterministic scheduler name for the job bound to nodeID.
	JobName(nodeID string) string
	// Execute builds (but does not start) the job that invokes callback.
	Execute(callback FlowCallback, nodeID string) (*JobHandle, error)
}

// JobStarter is implemented by triggers that can be deployed from a persisted
// trigger config. Each call produces a freshly named job.
type JobStarter interface {
	StartFor(triggerID string, callback FlowCallback) (*JobHandle, error)
}

// IsJobTrigger reports whether node implements JobTrigger and claims to be one.
func IsJobTrigger(node Node) (JobTrigger, bool) {
	jt, ok := node.(JobTrigger)
	if !ok || !jt.IsJobTrigger() {
		return nil, false
	}

	return jt, true
}
