package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/logger"
)

func newTestRouter(t *testing.T, store domain.ThreadStore, agents ...*SubAgent) *DelegationRouter {
	t.Helper()
	return NewDelegationRouter(agents, logger.Discard())
}

func TestDelegateSuccess(t *testing.T) {
	gen := &scriptedGenerator{script: []scriptedTurn{textTurn("inbox is empty")}}
	store := newMemThreadStore()
	email := newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentEmail})
	router := newTestRouter(t, store, email)
	threadID := mustThread(t, store)

	res := router.Delegate(context.Background(), threadID, domain.DelegationRequest{
		TargetAgent: domain.AgentEmail,
		Task:        "check my unread mail",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "inbox is empty", res.Result)
	assert.Empty(t, res.Error)
	assert.Equal(t, domain.AgentEmail, res.Metadata.Agent)
	assert.False(t, res.Metadata.Timestamp.IsZero())
}

func TestDelegateUnknownAgent(t *testing.T) {
	store := newMemThreadStore()
	router := newTestRouter(t, store)
	threadID := mustThread(t, store)

	res := router.Delegate(context.Background(), threadID, domain.DelegationRequest{
		TargetAgent: "quantumComputing",
		Task:        "simulate a qubit",
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown agent")
	assert.Equal(t, domain.AgentID("quantumComputing"), res.Metadata.Agent)
	assert.False(t, res.Metadata.Timestamp.IsZero())
}

func TestDelegateValidation(t *testing.T) {
	store := newMemThreadStore()
	gen := &scriptedGenerator{}
	router := newTestRouter(t, store, newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentEmail}))

	res := router.Delegate(context.Background(), "t", domain.DelegationRequest{TargetAgent: domain.AgentEmail})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid input")

	res = router.Delegate(context.Background(), "t", domain.DelegationRequest{Task: "do something"})
	assert.False(t, res.Success)
	assert.Zero(t, gen.calls)
}

func TestDelegateSubAgentFailureIsData(t *testing.T) {
	gen := &scriptedGenerator{script: []scriptedTurn{
		toolTurn(domain.ToolCall{ID: "c", Name: "loop"}),
		toolTurn(domain.ToolCall{ID: "c", Name: "loop"}),
		toolTurn(domain.ToolCall{ID: "c", Name: "loop"}),
	}}
	store := newMemThreadStore()
	agent := newTestAgent(gen, store, newStaticTools(&echoTool{name: "loop", reply: "again"}), domain.AgentIdentity{ID: domain.AgentWebSearch})
	router := newTestRouter(t, store, agent)
	threadID := mustThread(t, store)

	res := router.Delegate(context.Background(), threadID, domain.DelegationRequest{
		TargetAgent: domain.AgentWebSearch,
		Task:        "search forever",
	})

	// the step budget for a delegated run is fixed at three.
	assert.Equal(t, 3, gen.calls)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "step budget")
}

func TestDelegateBuildsTaskWithContext(t *testing.T) {
	gen := &scriptedGenerator{script: []scriptedTurn{textTurn("done")}}
	store := newMemThreadStore()
	agent := newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentCalendar})
	router := newTestRouter(t, store, agent)
	threadID := mustThread(t, store)

	router.Delegate(context.Background(), threadID, domain.DelegationRequest{
		TargetAgent: domain.AgentCalendar,
		Task:        "book the workshop",
		Context: &domain.DelegationContext{
			Priority:    "high",
			Deadline:    "next Friday",
			RelatedInfo: "attendees prefer mornings",
		},
	})

	require.Len(t, gen.reqs, 1)
	sent := gen.reqs[0].Messages[len(gen.reqs[0].Messages)-1].Content
	assert.Contains(t, sent, "book the workshop")
	assert.Contains(t, sent, "Priority: high")
	assert.Contains(t, sent, "Deadline: next Friday")
	assert.Contains(t, sent, "Related information:\nattendees prefer mornings")
}

func TestDelegateTruncatesRelatedInfo(t *testing.T) {
	gen := &scriptedGenerator{script: []scriptedTurn{textTurn("done")}}
	store := newMemThreadStore()
	agent := newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentMemory})
	router := newTestRouter(t, store, agent)
	threadID := mustThread(t, store)

	// Far more than the 500-token context budget.
	huge := strings.Repeat("lorem ipsum dolor sit amet ", 400)
	router.Delegate(context.Background(), threadID, domain.DelegationRequest{
		TargetAgent: domain.AgentMemory,
		Task:        "remember this",
		Context:     &domain.DelegationContext{RelatedInfo: huge},
	})

	require.Len(t, gen.reqs, 1)
	sent := gen.reqs[0].Messages[len(gen.reqs[0].Messages)-1].Content
	assert.Less(t, len(sent), len(huge))
	assert.Contains(t, sent, "…")
}

func TestRouterAgentsSorted(t *testing.T) {
	store := newMemThreadStore()
	gen := &scriptedGenerator{}
	router := newTestRouter(t, store,
		newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentWeather}),
		newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentCalendar}),
		newTestAgent(gen, store, newStaticTools(), domain.AgentIdentity{ID: domain.AgentEmail}),
	)

	assert.Equal(t, []domain.AgentID{domain.AgentCalendar, domain.AgentEmail, domain.AgentWeather}, router.Agents())
}
