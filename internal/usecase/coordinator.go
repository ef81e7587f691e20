package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/tracer"
)

// DelegateToolName is the orchestrator tool that routes work to sub-agents.
// The coordinator scans the tool-call trace for it to report which agents
// participated in a request.
const DelegateToolName = "delegate_task"

// CoordinatorDeps holds injected dependencies for the coordinator.
type CoordinatorDeps struct {
	Orchestrator   *SubAgent
	Analyzer       *TaskAnalyzer
	Threads        domain.ThreadStore
	Logger         *slog.Logger
	StepBuffer     int           // added to the analyzer's step estimate
	Temperature    float64       // orchestrator generation temperature
	DefaultTimeout time.Duration // used when the request carries none
}

// Coordinator is the single entry point for processing user requests. It
// owns no state beyond its dependencies; concurrent calls on different
// threads are independent.
type Coordinator struct {
	deps CoordinatorDeps
}

// NewCoordinator creates a coordinator.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	if deps.StepBuffer <= 0 {
		deps.StepBuffer = 2
	}
	if deps.Temperature == 0 {
		deps.Temperature = 0.8
	}
	if deps.DefaultTimeout <= 0 {
		deps.DefaultTimeout = 2 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{deps: deps}
}

// ProcessRequest handles one user message end to end. It never returns an
// error: any processing failure becomes a CoordinationResult with
// Success=false and a user-facing message.
func (c *Coordinator) ProcessRequest(ctx context.Context, req domain.CoordinationRequest) domain.CoordinationResult {
	start := time.Now()

	ctx, span := tracer.StartSpan(ctx, "coordinator.process_request",
		trace.WithAttributes(tracer.StringAttr("user.id", req.UserID)),
	)
	defer span.End()

	if req.UserID == "" || req.Message == "" {
		err := domain.NewDomainError("Coordinator.ProcessRequest", domain.ErrInvalidInput, "user id and message are required")
		tracer.RecordError(span, err)
		return c.failure("", err, start)
	}

	timeout := c.deps.DefaultTimeout
	requestedThread := ""
	priority := ""
	if req.Context != nil {
		requestedThread = req.Context.ThreadID
		priority = req.Context.Priority
		if req.Context.Timeout > 0 {
			timeout = req.Context.Timeout
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thread, err := c.deps.Threads.CreateThread(ctx, req.UserID, requestedThread, nil)
	if err != nil {
		tracer.RecordError(span, err)
		return c.failure(requestedThread, err, start)
	}

	analysis := c.deps.Analyzer.Analyze(req.Message)
	c.deps.Logger.Info("request analyzed",
		"user", req.UserID,
		"thread", thread.ID,
		"intent", analysis.PrimaryIntent,
		"complexity", analysis.Complexity,
		"estimated_steps", analysis.EstimatedSteps,
	)

	ctx = domain.ContextWithThreadID(ctx, thread.ID)
	ctx = domain.ContextWithUserID(ctx, req.UserID)

	message := req.Message
	if priority != "" {
		message = fmt.Sprintf("[priority: %s] %s", priority, message)
	}

	outcome, err := c.deps.Orchestrator.Run(ctx, thread.ID, message, RunOptions{
		MaxSteps:    analysis.EstimatedSteps + c.deps.StepBuffer,
		Temperature: c.deps.Temperature,
	})
	if err != nil {
		tracer.RecordError(span, err)
		c.deps.Logger.Error("orchestrator run failed", "thread", thread.ID, "error", err)
		return c.failure(thread.ID, err, start)
	}

	tracer.SetOK(span)
	return domain.CoordinationResult{
		Success:       true,
		Response:      outcome.Reply,
		ThreadID:      thread.ID,
		AgentsUsed:    agentsFromTrace(outcome.NewMessages),
		ExecutionTime: time.Since(start),
		Metadata: map[string]string{
			"intent":     analysis.PrimaryIntent,
			"complexity": string(analysis.Complexity),
		},
	}
}

// ConversationHistory returns the ordered messages of a user's thread. An
// empty threadID selects the user's most recently updated thread.
func (c *Coordinator) ConversationHistory(ctx context.Context, userID, threadID string, limit int) ([]domain.Message, error) {
	const op = "Coordinator.ConversationHistory"
	if userID == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "user id is required")
	}
	if threadID == "" {
		var err error
		threadID, err = c.latestThread(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	return c.deps.Threads.History(ctx, threadID, limit)
}

// ClearHistory deletes a user's thread. An empty threadID clears the most
// recently updated thread. Returns false when there is nothing to clear.
func (c *Coordinator) ClearHistory(ctx context.Context, userID, threadID string) (bool, error) {
	const op = "Coordinator.ClearHistory"
	if userID == "" {
		return false, domain.NewDomainError(op, domain.ErrInvalidInput, "user id is required")
	}
	if threadID == "" {
		var err error
		threadID, err = c.latestThread(ctx, userID)
		if errors.Is(err, domain.ErrThreadNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if err := c.deps.Threads.DeleteThread(ctx, threadID); err != nil {
		return false, err
	}
	c.deps.Logger.Info("conversation history cleared", "user", userID, "thread", threadID)
	return true, nil
}

func (c *Coordinator) latestThread(ctx context.Context, userID string) (string, error) {
	threads, err := c.deps.Threads.ThreadsByResource(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(threads) == 0 {
		return "", domain.NewDomainError("Coordinator.latestThread", domain.ErrThreadNotFound, userID)
	}
	latest := threads[0]
	for _, t := range threads[1:] {
		if t.UpdatedAt.After(latest.UpdatedAt) {
			latest = t
		}
	}
	return latest.ID, nil
}

func (c *Coordinator) failure(threadID string, err error, start time.Time) domain.CoordinationResult {
	return domain.CoordinationResult{
		Success:       false,
		Response:      fmt.Sprintf("I apologize, but I ran into a problem while processing your request: %v", err),
		ThreadID:      threadID,
		AgentsUsed:    []domain.AgentID{},
		ExecutionTime: time.Since(start),
		Metadata:      map[string]string{"error": err.Error()},
	}
}

// agentsFromTrace derives the set of agents that participated in a run
// from its tool-call trace. The orchestrator is always first; each distinct
// sub-agent named in a delegation call follows in call order.
func agentsFromTrace(msgs []domain.Message) []domain.AgentID {
	used := []domain.AgentID{domain.AgentOrchestrator}
	seen := map[domain.AgentID]bool{domain.AgentOrchestrator: true}
	for _, msg := range msgs {
		if msg.Role != domain.RoleAssistant {
			continue
		}
		for _, call := range msg.ToolCalls {
			if call.Name != DelegateToolName {
				continue
			}
			var args struct {
				Agent string `json:"agent"`
			}
			if err := json.Unmarshal(call.Arguments, &args); err != nil || args.Agent == "" {
				continue
			}
			id := domain.AgentID(args.Agent)
			if !seen[id] {
				seen[id] = true
				used = append(used, id)
			}
		}
	}
	return used
}
