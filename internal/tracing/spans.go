package tracing

// Span attribute keys for pool generation tracing.
const (
	AttrRunID      = "run.id"
	AttrGeneration = "run.generation"
	AttrTaskCount  = "run.task_count"
	AttrSpeed      = "run.speed"
	AttrPriority   = "run.priority"
	AttrOutcome    = "run.outcome"
)

// Event names for span events.
const (
	EventPaused  = "pool.paused"
	EventResumed = "pool.resumed"
)
