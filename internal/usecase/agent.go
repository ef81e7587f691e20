package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/tracer"
)

const defaultMaxSteps = 10

// SubAgentDeps holds injected dependencies for a sub-agent.
type SubAgentDeps struct {
	Identity     domain.AgentIdentity
	Generator    domain.Generator
	Threads      domain.ThreadStore
	Tools        domain.ToolExecutor
	Logger       *slog.Logger
	HistoryLimit int // messages of prior history loaded per run; <=0 = all
}

// SubAgent runs the receive-think-act loop for one agent identity against a
// shared conversation thread.
type SubAgent struct {
	deps SubAgentDeps
}

// NewSubAgent creates a sub-agent with the given dependencies.
func NewSubAgent(deps SubAgentDeps) *SubAgent {
	if deps.Identity.MaxSteps <= 0 {
		deps.Identity.MaxSteps = defaultMaxSteps
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &SubAgent{deps: deps}
}

// ID returns the agent's identifier.
func (a *SubAgent) ID() domain.AgentID { return a.deps.Identity.ID }

// RunOptions tunes one Run call. Zero values fall back to the identity's
// own settings.
type RunOptions struct {
	MaxSteps    int
	Temperature float64
}

// RunOutcome is the result of one completed agent loop.
type RunOutcome struct {
	Reply       string
	NewMessages []domain.Message
	ToolsUsed   []string
	Usage       domain.Usage
}

// Run processes one user message on the given thread: load history, loop
// generate → execute tool calls until the model answers without tool calls
// or the step ceiling is hit, then persist the new messages.
func (a *SubAgent) Run(ctx context.Context, threadID, userMsg string, opts RunOptions) (*RunOutcome, error) {
	const op = "SubAgent.Run"

	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(tracer.StringAttr("agent.id", string(a.deps.Identity.ID))),
	)
	defer span.End()

	if threadID == "" || userMsg == "" {
		err := domain.NewDomainError(op, domain.ErrInvalidInput, "thread id and message are required")
		tracer.RecordError(span, err)
		return nil, err
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = a.deps.Identity.MaxSteps
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = a.deps.Identity.Temperature
	}

	history, err := a.deps.Threads.History(ctx, threadID, a.deps.HistoryLimit)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}

	messages := make([]domain.Message, 0, len(history)+2)
	if a.deps.Identity.SystemPrompt != "" {
		messages = append(messages, domain.Message{
			Role:    domain.RoleSystem,
			Content: a.deps.Identity.SystemPrompt,
		})
	}
	messages = append(messages, history...)

	userMessage := domain.Message{
		Role:      domain.RoleUser,
		Content:   userMsg,
		Timestamp: time.Now(),
	}
	messages = append(messages, userMessage)
	newMessages := []domain.Message{userMessage}

	var toolsUsed []string
	var totalUsage domain.Usage

	for step := 0; step < maxSteps; step++ {
		span.AddEvent("agent.step", trace.WithAttributes(tracer.IntAttr("step", step)))

		genCtx, genSpan := tracer.StartSpan(ctx, "agent.generate")
		result, genErr := a.deps.Generator.Generate(genCtx, domain.GenerateRequest{
			Messages:    messages,
			Tools:       a.toolSchemas(),
			Temperature: temperature,
		})
		genSpan.End()
		if genErr != nil {
			tracer.RecordError(span, genErr)
			a.persist(ctx, threadID, newMessages)
			return nil, domain.NewDomainError(op, domain.ErrGenerationFailure, genErr.Error())
		}

		totalUsage.PromptTokens += result.Usage.PromptTokens
		totalUsage.CompletionTokens += result.Usage.CompletionTokens
		totalUsage.TotalTokens += result.Usage.TotalTokens

		messages = append(messages, result.Message)
		newMessages = append(newMessages, result.Message)

		a.deps.Logger.Debug("generation step",
			"agent", a.deps.Identity.ID,
			"step", step,
			"tool_calls", len(result.Message.ToolCalls),
			"tokens", result.Usage.TotalTokens,
		)

		if len(result.Message.ToolCalls) == 0 {
			a.persist(ctx, threadID, newMessages)
			tracer.SetOK(span)
			return &RunOutcome{
				Reply:       result.Message.Content,
				NewMessages: newMessages,
				ToolsUsed:   toolsUsed,
				Usage:       totalUsage,
			}, nil
		}

		// Execute tool calls in parallel; results are indexed to preserve
		// the model's call order.
		toolMsgs := make([]domain.Message, len(result.Message.ToolCalls))
		var wg sync.WaitGroup
		for i, call := range result.Message.ToolCalls {
			wg.Add(1)
			go func(idx int, c domain.ToolCall) {
				defer wg.Done()
				toolMsgs[idx] = a.executeTool(ctx, c)
			}(i, call)
		}
		wg.Wait()

		for i, toolMsg := range toolMsgs {
			toolsUsed = appendUnique(toolsUsed, result.Message.ToolCalls[i].Name)
			messages = append(messages, toolMsg)
			newMessages = append(newMessages, toolMsg)
		}
	}

	a.persist(ctx, threadID, newMessages)
	tracer.RecordError(span, domain.ErrMaxSteps)
	return nil, domain.NewDomainError(op, domain.ErrMaxSteps, "")
}

// executeTool runs a single tool call and wraps the outcome as a tool
// message. Tool failures become message content, never errors.
func (a *SubAgent) executeTool(ctx context.Context, call domain.ToolCall) domain.Message {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	toolMsg := domain.Message{
		Role: domain.RoleTool,
		Name: call.Name,
		ToolCalls: []domain.ToolCall{{
			ID:   call.ID,
			Name: call.Name,
		}},
		Timestamp: time.Now(),
	}

	tool, err := a.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		toolMsg.Content = err.Error()
		return toolMsg
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		toolMsg.Content = err.Error()
		return toolMsg
	}

	tracer.SetOK(span)
	toolMsg.Content = result.Content
	return toolMsg
}

// toolSchemas returns the schemas the generator may call, restricted to the
// identity's tool allow-list when one is set.
func (a *SubAgent) toolSchemas() []domain.ToolSchema {
	schemas := a.deps.Tools.Schemas()
	if len(a.deps.Identity.Tools) == 0 {
		return schemas
	}
	allowed := make(map[string]bool, len(a.deps.Identity.Tools))
	for _, name := range a.deps.Identity.Tools {
		allowed[name] = true
	}
	var filtered []domain.ToolSchema
	for _, s := range schemas {
		if allowed[s.Name] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// persist appends the run's new messages to the thread. It detaches from
// the request context so the transcript survives deadline expiry: the next
// turn still needs whatever partial work completed before the timeout.
// Persistence failure is logged, not fatal: the reply already exists.
func (a *SubAgent) persist(ctx context.Context, threadID string, msgs []domain.Message) {
	if len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.deps.Threads.Append(ctx, threadID, msgs); err != nil {
		a.deps.Logger.Warn("failed to persist thread messages",
			"agent", a.deps.Identity.ID,
			"thread", threadID,
			"error", err,
		)
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
