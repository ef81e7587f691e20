package domain

import "time"

// AgentID names a registered agent.
type AgentID string

// Well-known agent IDs. The orchestrator always exists; the rest are the
// specialized sub-agents it can delegate to.
const (
	AgentOrchestrator AgentID = "orchestrator"
	AgentEmail        AgentID = "email"
	AgentCalendar     AgentID = "calendar"
	AgentWebSearch    AgentID = "webSearch"
	AgentWeather      AgentID = "weather"
	AgentMemory       AgentID = "memory"
)

// AgentIdentity describes one agent instance: its prompt, model tuning,
// and the subset of tools it may call.
type AgentIdentity struct {
	ID           AgentID  `json:"id"            yaml:"id"`
	Name         string   `json:"name"          yaml:"name"`
	Description  string   `json:"description"   yaml:"description"`
	SystemPrompt string   `json:"system_prompt" yaml:"system_prompt"`
	Temperature  float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxSteps     int      `json:"max_steps,omitempty"   yaml:"max_steps,omitempty"`
	Tools        []string `json:"tools,omitempty"       yaml:"tools,omitempty"`
}

// Complexity tiers for an analyzed task.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// TaskAnalysis sizes the step budget for one incoming message and lists the
// sub-agents plausibly involved. It is advisory: the orchestrator may still
// call any tool or agent within its budget.
type TaskAnalysis struct {
	PrimaryIntent     string     `json:"primary_intent"`
	RequiredAgents    []AgentID  `json:"required_agents"`
	Complexity        Complexity `json:"complexity"`
	EstimatedSteps    int        `json:"estimated_steps"`
	SuggestedApproach string     `json:"suggested_approach"`
}

// DelegationContext carries optional hints alongside a delegated task.
type DelegationContext struct {
	Priority    string `json:"priority,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	RelatedInfo string `json:"related_info,omitempty"`
}

// DelegationRequest asks a named sub-agent to handle one task.
type DelegationRequest struct {
	TargetAgent AgentID            `json:"target_agent"`
	Task        string             `json:"task"`
	Context     *DelegationContext `json:"context,omitempty"`
}

// DelegationMetadata records who ran a delegation and what it touched.
type DelegationMetadata struct {
	Agent     AgentID   `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
}

// DelegationResult is the always-returned outcome of one delegation.
// Failures are data, never panics or errors: the caller decides whether to
// retry, re-route, or report.
type DelegationResult struct {
	Success  bool               `json:"success"`
	Result   string             `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
	Metadata DelegationMetadata `json:"metadata"`
}

// RequestContext carries optional per-request hints.
type RequestContext struct {
	ThreadID string        `json:"thread,omitempty"`
	Priority string        `json:"priority,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// CoordinationRequest is one user utterance entering the system.
type CoordinationRequest struct {
	UserID  string          `json:"user_id"`
	Message string          `json:"message"`
	Context *RequestContext `json:"context,omitempty"`
}

// CoordinationResult is the terminal output of one coordinator invocation.
type CoordinationResult struct {
	Success       bool              `json:"success"`
	Response      string            `json:"response"`
	ThreadID      string            `json:"thread_id"`
	AgentsUsed    []AgentID         `json:"agents_used"`
	ExecutionTime time.Duration     `json:"execution_time"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
