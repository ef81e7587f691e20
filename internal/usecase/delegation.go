package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/tracer"
)

// Delegated calls run with a tight step ceiling and moderate temperature;
// a sub-task should not burn the whole conversation's budget.
const (
	delegationMaxSteps    = 3
	delegationTemperature = 0.7

	// relatedInfoTokenBudget caps the serialized context attached to a
	// delegated task. Counted with cl100k_base; overflow is truncated,
	// not rejected.
	relatedInfoTokenBudget = 500

	tokenEncoding = "cl100k_base"
)

// DelegationRouter maps delegation requests onto a static set of named
// sub-agents. Delegation failures are returned as data, never as errors:
// the orchestrator decides whether to retry or re-route.
type DelegationRouter struct {
	agents map[domain.AgentID]*SubAgent
	logger *slog.Logger
	enc    *tiktoken.Tiktoken
}

// NewDelegationRouter builds a router over the given sub-agents.
func NewDelegationRouter(agents []*SubAgent, logger *slog.Logger) *DelegationRouter {
	byID := make(map[domain.AgentID]*SubAgent, len(agents))
	for _, ag := range agents {
		byID[ag.ID()] = ag
	}
	// Encoding load can only fail on a corrupted embedded table; fall back
	// to character-based truncation in that case.
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, falling back to rune counting", "error", err)
	}
	return &DelegationRouter{agents: byID, logger: logger, enc: enc}
}

// Agents lists the registered sub-agent IDs, sorted.
func (r *DelegationRouter) Agents() []domain.AgentID {
	ids := make([]domain.AgentID, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Delegate runs one task against the requested sub-agent on the caller's
// thread. It never returns an error: every outcome, including an unknown
// agent or a sub-agent crash, is a DelegationResult.
func (r *DelegationRouter) Delegate(ctx context.Context, threadID string, req domain.DelegationRequest) domain.DelegationResult {
	ctx, span := tracer.StartSpan(ctx, "delegation.delegate",
		trace.WithAttributes(tracer.StringAttr("agent.target", string(req.TargetAgent))),
	)
	defer span.End()

	if req.TargetAgent == "" || req.Task == "" {
		err := domain.NewDomainError("DelegationRouter.Delegate", domain.ErrInvalidInput, "target agent and task are required")
		tracer.RecordError(span, err)
		return r.failure(req.TargetAgent, err)
	}

	agent, ok := r.agents[req.TargetAgent]
	if !ok {
		err := domain.NewDomainError("DelegationRouter.Delegate", domain.ErrUnknownAgent, string(req.TargetAgent))
		tracer.RecordError(span, err)
		r.logger.Warn("delegation to unknown agent", "agent", req.TargetAgent)
		return r.failure(req.TargetAgent, err)
	}

	task := r.buildTask(req)

	r.logger.Info("delegating task",
		"agent", req.TargetAgent,
		"thread", threadID,
		"task_len", len(task),
	)

	outcome, err := agent.Run(ctx, threadID, task, RunOptions{
		MaxSteps:    delegationMaxSteps,
		Temperature: delegationTemperature,
	})
	if err != nil {
		tracer.RecordError(span, err)
		r.logger.Error("delegation failed", "agent", req.TargetAgent, "error", err)
		return r.failure(req.TargetAgent, err)
	}

	tracer.SetOK(span)
	return domain.DelegationResult{
		Success: true,
		Result:  outcome.Reply,
		Metadata: domain.DelegationMetadata{
			Agent:     req.TargetAgent,
			Timestamp: time.Now(),
			ToolsUsed: outcome.ToolsUsed,
		},
	}
}

// buildTask concatenates the task with a serialized form of the optional
// delegation context.
func (r *DelegationRouter) buildTask(req domain.DelegationRequest) string {
	if req.Context == nil {
		return req.Task
	}

	var b strings.Builder
	b.WriteString(req.Task)
	if req.Context.Priority != "" {
		fmt.Fprintf(&b, "\n\nPriority: %s", req.Context.Priority)
	}
	if req.Context.Deadline != "" {
		fmt.Fprintf(&b, "\nDeadline: %s", req.Context.Deadline)
	}
	if info := r.truncate(req.Context.RelatedInfo, relatedInfoTokenBudget); info != "" {
		fmt.Fprintf(&b, "\nRelated information:\n%s", info)
	}
	return b.String()
}

// truncate bounds text to at most budget tokens.
func (r *DelegationRouter) truncate(text string, budget int) string {
	if text == "" {
		return ""
	}
	if r.enc == nil {
		// Rough fallback: ~4 chars per token.
		runes := []rune(text)
		if len(runes) > budget*4 {
			return string(runes[:budget*4]) + "…"
		}
		return text
	}
	tokens := r.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return r.enc.Decode(tokens[:budget]) + "…"
}

func (r *DelegationRouter) failure(agent domain.AgentID, err error) domain.DelegationResult {
	return domain.DelegationResult{
		Success: false,
		Error:   err.Error(),
		Metadata: domain.DelegationMetadata{
			Agent:     agent,
			Timestamp: time.Now(),
		},
	}
}
