package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/logger"
)

func weatherProvider() *stubProvider {
	return &stubProvider{
		name:       "weather",
		callResult: "sunny, 21C",
		tools: []domain.CapabilityEntry{
			{Provider: "weather", Kind: domain.CapabilityTool, Name: "get_forecast",
				Description: "Fetch the forecast for a city",
				ArgumentsSchema: json.RawMessage(`{
					"type": "object",
					"properties": {"city": {"type": "string"}},
					"required": ["city"]
				}`)},
		},
	}
}

func TestProviderToolsWrapSnapshot(t *testing.T) {
	reg := newStubRegistry(t, weatherProvider())

	tools := ProviderTools(reg, "", logger.Discard())
	require.Len(t, tools, 1)
	assert.Equal(t, "get_forecast", tools[0].Name())

	schema := tools[0].Schema()
	assert.Equal(t, "Fetch the forecast for a city", schema.Description)
	assert.Contains(t, string(schema.Parameters), `"city"`)
}

func TestProviderToolCallsThroughRegistry(t *testing.T) {
	p := weatherProvider()
	reg := newStubRegistry(t, p)
	tools := ProviderTools(reg, "weather", logger.Discard())
	require.Len(t, tools, 1)

	res, err := tools[0].Execute(context.Background(), json.RawMessage(`{"city":"Toronto"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "sunny, 21C", res.Content)
	assert.Equal(t, map[string]any{"city": "Toronto"}, p.lastToolArgs)
}

func TestProviderToolSchemaValidationFailureIsData(t *testing.T) {
	p := weatherProvider()
	reg := newStubRegistry(t, p)
	tools := ProviderTools(reg, "weather", logger.Discard())
	require.Len(t, tools, 1)

	res, err := tools[0].Execute(context.Background(), json.RawMessage(`{"unit":"celsius"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "schema validation")
	assert.Nil(t, p.lastToolArgs)
}

func TestRegistryExecutorResolvesLiveSnapshot(t *testing.T) {
	p := weatherProvider()
	reg := newStubRegistry(t, p)
	exec := NewRegistryExecutor(reg, logger.Discard(), &stubTool{name: "delegate_task"})

	local, err := exec.Get("delegate_task")
	require.NoError(t, err)
	assert.Equal(t, "delegate_task", local.Name())

	remote, err := exec.Get("get_forecast")
	require.NoError(t, err)
	res, err := remote.Execute(context.Background(), json.RawMessage(`{"city":"Oslo"}`))
	require.NoError(t, err)
	assert.Equal(t, "sunny, 21C", res.Content)

	_, err = exec.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A tool the provider gains after wiring becomes callable once the
	// registry refreshes; no executor rebuild needed.
	p.tools = append(p.tools, domain.CapabilityEntry{
		Provider: "weather", Kind: domain.CapabilityTool, Name: "get_alerts",
	})
	require.NoError(t, reg.Refresh(context.Background(), "weather"))

	alerts, err := exec.Get("get_alerts")
	require.NoError(t, err)
	assert.Equal(t, "get_alerts", alerts.Name())
}

func TestRegistryExecutorSchemasMergeLocalAndProvider(t *testing.T) {
	reg := newStubRegistry(t, weatherProvider())
	exec := NewRegistryExecutor(reg, logger.Discard(),
		&stubTool{name: "delegate_task"},
		&stubTool{name: "get_forecast"}, // shadows the provider tool
	)

	schemas := exec.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "delegate_task", schemas[0].Name)
	assert.Equal(t, "get_forecast", schemas[1].Name)
	// The local stub wins the collision; its schema has no parameters.
	assert.Empty(t, schemas[1].Parameters)
}

func TestProviderToolDefaultsEmptySchema(t *testing.T) {
	p := &stubProvider{
		name:       "notes",
		callResult: "ok",
		tools: []domain.CapabilityEntry{
			{Provider: "notes", Kind: domain.CapabilityTool, Name: "append_note"},
		},
	}
	reg := newStubRegistry(t, p)
	tools := ProviderTools(reg, "notes", logger.Discard())
	require.Len(t, tools, 1)

	assert.JSONEq(t, `{"type":"object"}`, string(tools[0].Schema().Parameters))
}
