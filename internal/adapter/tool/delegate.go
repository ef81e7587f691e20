package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/usecase"
)

// DelegateTool lets the orchestrator hand a task to a specialist sub-agent.
type DelegateTool struct {
	router *usecase.DelegationRouter
	logger *slog.Logger
}

// NewDelegateTool creates the delegation tool.
func NewDelegateTool(router *usecase.DelegationRouter, logger *slog.Logger) *DelegateTool {
	return &DelegateTool{router: router, logger: logger}
}

func (t *DelegateTool) Name() string { return usecase.DelegateToolName }

func (t *DelegateTool) Description() string {
	return "Delegate a task to a specialist agent and wait for its result"
}

func (t *DelegateTool) Schema() domain.ToolSchema {
	ids := t.router.Agents()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, string(id))
	}
	agentList := "none"
	if len(names) > 0 {
		agentList = strings.Join(names, ", ")
	}

	return domain.ToolSchema{
		Name: t.Name(),
		Description: fmt.Sprintf(
			"Delegate a task to a specialist agent and wait for its result. Available agents: %s. "+
				"The result reports success or failure; on failure you may retry, pick another agent, or answer yourself.",
			agentList),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"agent": {
					"type": "string",
					"description": "The ID of the agent to delegate to"
				},
				"task": {
					"type": "string",
					"description": "The task for the agent, phrased as a complete instruction"
				},
				"priority": {
					"type": "string",
					"description": "Optional priority hint (low, normal, high)"
				},
				"deadline": {
					"type": "string",
					"description": "Optional deadline hint"
				},
				"related_info": {
					"type": "string",
					"description": "Optional background the agent needs for the task"
				}
			},
			"required": ["agent", "task"]
		}`),
	}
}

type delegateParams struct {
	Agent       string `json:"agent"`
	Task        string `json:"task"`
	Priority    string `json:"priority"`
	Deadline    string `json:"deadline"`
	RelatedInfo string `json:"related_info"`
}

func (t *DelegateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.delegate_task", t.logger, params,
		func(ctx context.Context, span trace.Span, p delegateParams) (any, error) {
			if err := RequireFields("agent", p.Agent, "task", p.Task); err != nil {
				return ErrResult("%s", err.Error())
			}

			threadID := domain.ThreadIDFromContext(ctx)
			if threadID == "" {
				return ErrResult("no conversation thread in context")
			}
			var dctx *domain.DelegationContext
			if p.Priority != "" || p.Deadline != "" || p.RelatedInfo != "" {
				dctx = &domain.DelegationContext{
					Priority:    p.Priority,
					Deadline:    p.Deadline,
					RelatedInfo: p.RelatedInfo,
				}
			}

			result := t.router.Delegate(ctx, threadID, domain.DelegationRequest{
				TargetAgent: domain.AgentID(p.Agent),
				Task:        p.Task,
				Context:     dctx,
			})
			// Failures are returned as data so the model can react.
			return result, nil
		},
	)
}
