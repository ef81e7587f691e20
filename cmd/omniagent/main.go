package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/TSGCFO/OmniAgent-v2/internal/adapter/capability"
	"github.com/TSGCFO/OmniAgent-v2/internal/adapter/llm"
	"github.com/TSGCFO/OmniAgent-v2/internal/adapter/memory"
	"github.com/TSGCFO/OmniAgent-v2/internal/adapter/tool"
	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/config"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/logger"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/tracer"
	"github.com/TSGCFO/OmniAgent-v2/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "local", "user id for the conversation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// Conversation memory.
	threads, err := memory.NewSQLiteThreadStore(cfg.Memory.Path)
	if err != nil {
		return fmt.Errorf("open thread store: %w", err)
	}
	defer threads.Close()

	// Capability providers. A provider that fails to connect is skipped,
	// not fatal: the rest of the system still works.
	var providers []domain.CapabilityProvider
	for _, srv := range cfg.Providers {
		p, err := capability.NewMCPProvider(ctx, srv, log)
		if err != nil {
			log.Warn("capability provider unavailable, skipping", "name", srv.Name, "error", err)
			continue
		}
		defer p.Close()
		providers = append(providers, p)
	}

	registry := usecase.NewCapabilityRegistry(providers, usecase.RegistryOptions{
		CallsPerSecond: cfg.Registry.CallsPerSecond,
		CallBurst:      cfg.Registry.CallBurst,
	}, log)
	registry.RefreshAll(ctx)

	var scheduler *cron.Cron
	if cfg.Registry.RefreshCron != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Registry.RefreshCron, func() {
			registry.RefreshAll(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule registry refresh: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("scheduled registry refresh", "cron", cfg.Registry.RefreshCron)
	}

	// Generation backend behind a circuit breaker.
	generator := llm.NewCircuitBreakerGenerator(
		llm.NewOpenAIGenerator(cfg.LLM, log),
		cfg.LLM.CircuitBreaker,
		log,
	)

	coordinator := buildCoordinator(cfg, generator, registry, threads, log)

	log.Info("omniagent ready",
		"model", cfg.LLM.Model,
		"providers", len(providers),
		"memory", cfg.Memory.Path,
	)

	return repl(ctx, coordinator, registry, *userID)
}

// buildCoordinator wires the sub-agents, delegation router, orchestrator
// and coordinator from configuration.
func buildCoordinator(
	cfg *config.Config,
	generator domain.Generator,
	registry *usecase.CapabilityRegistry,
	threads domain.ThreadStore,
	log *slog.Logger,
) *usecase.Coordinator {
	scorer := usecase.NewKeywordScorer()

	// Specialist sub-agents share the live provider tool surface; their
	// config can narrow it per agent via the tools allow-list. Resolving
	// through the registry keeps tools discovered by a scheduled refresh
	// callable without rewiring.
	subAgentTools := tool.NewRegistryExecutor(registry, log)

	var subAgents []*usecase.SubAgent
	for _, ac := range cfg.Agents {
		if domain.AgentID(ac.ID) == domain.AgentOrchestrator {
			continue
		}
		subAgents = append(subAgents, usecase.NewSubAgent(usecase.SubAgentDeps{
			Identity: domain.AgentIdentity{
				ID:           domain.AgentID(ac.ID),
				Name:         ac.Name,
				Description:  ac.Description,
				SystemPrompt: ac.SystemPrompt,
				Temperature:  ac.Temperature,
				MaxSteps:     ac.MaxSteps,
				Tools:        ac.Tools,
			},
			Generator:    generator,
			Threads:      threads,
			Tools:        subAgentTools,
			Logger:       log,
			HistoryLimit: cfg.Coordinator.HistoryLimit,
		}))
	}

	router := usecase.NewDelegationRouter(subAgents, log)

	// The orchestrator gets the delegation and discovery tools on top of
	// the same proxied provider tools the sub-agents see.
	orchestratorTools := tool.NewRegistryExecutor(registry, log,
		tool.NewDelegateTool(router, log),
		tool.NewFindResourcesTool(registry, scorer, log),
		tool.NewReadResourceTool(registry, log),
		tool.NewFindPromptsTool(registry, scorer, log),
		tool.NewGetPromptTool(registry, log),
		tool.NewListCapabilitiesTool(registry, log),
	)

	orchestrator := usecase.NewSubAgent(usecase.SubAgentDeps{
		Identity:     orchestratorIdentity(cfg.Agents),
		Generator:    generator,
		Threads:      threads,
		Tools:        orchestratorTools,
		Logger:       log,
		HistoryLimit: cfg.Coordinator.HistoryLimit,
	})

	return usecase.NewCoordinator(usecase.CoordinatorDeps{
		Orchestrator:   orchestrator,
		Analyzer:       usecase.NewTaskAnalyzer(),
		Threads:        threads,
		Logger:         log,
		StepBuffer:     cfg.Coordinator.StepBuffer,
		Temperature:    cfg.Coordinator.Temperature,
		DefaultTimeout: cfg.Coordinator.DefaultTimeout,
	})
}

func orchestratorIdentity(agents []config.AgentConfig) domain.AgentIdentity {
	for _, ac := range agents {
		if domain.AgentID(ac.ID) == domain.AgentOrchestrator {
			return domain.AgentIdentity{
				ID:           domain.AgentOrchestrator,
				Name:         ac.Name,
				Description:  ac.Description,
				SystemPrompt: ac.SystemPrompt,
				Temperature:  ac.Temperature,
				MaxSteps:     ac.MaxSteps,
				Tools:        ac.Tools,
			}
		}
	}
	return domain.AgentIdentity{
		ID:   domain.AgentOrchestrator,
		Name: "Orchestrator",
		SystemPrompt: "You are a personal assistant orchestrator. Answer directly when you can. " +
			"For specialist work (email, calendar, web search, weather, memory) use delegate_task. " +
			"Use find_resources, read_resource, find_prompts and get_prompt to pull in relevant context.",
	}
}

// repl reads user messages from stdin until EOF or interrupt.
func repl(ctx context.Context, coordinator *usecase.Coordinator, registry *usecase.CapabilityRegistry, userID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	threadID := ""
	fmt.Println("omniagent ready. Type a message, /capabilities to list providers, /clear to wipe history, /quit to exit.")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			cleared, err := coordinator.ClearHistory(ctx, userID, threadID)
			if err != nil {
				fmt.Printf("clear failed: %v\n", err)
				continue
			}
			if cleared {
				threadID = ""
				fmt.Println("history cleared.")
			} else {
				fmt.Println("nothing to clear.")
			}
			continue
		case "/capabilities":
			printCapabilities(registry)
			continue
		}

		result := coordinator.ProcessRequest(ctx, domain.CoordinationRequest{
			UserID:  userID,
			Message: line,
			Context: &domain.RequestContext{ThreadID: threadID},
		})
		threadID = result.ThreadID

		fmt.Println(result.Response)
		if len(result.AgentsUsed) > 1 {
			names := make([]string, len(result.AgentsUsed))
			for i, id := range result.AgentsUsed {
				names[i] = string(id)
			}
			fmt.Printf("(agents: %s, %.1fs)\n", strings.Join(names, ", "), result.ExecutionTime.Seconds())
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// printCapabilities dumps the current registry snapshot grouped by kind.
func printCapabilities(registry *usecase.CapabilityRegistry) {
	groups := []struct {
		label   string
		entries []domain.CapabilityEntry
	}{
		{"tools", registry.ListTools(domain.CapabilityFilter{})},
		{"resources", registry.ListResources(domain.CapabilityFilter{})},
		{"prompts", registry.ListPrompts(domain.CapabilityFilter{})},
	}
	for _, g := range groups {
		fmt.Printf("%s (%d):\n", g.label, len(g.entries))
		for _, e := range g.entries {
			if e.Description != "" {
				fmt.Printf("  %s - %s\n", e.Key(), e.Description)
			} else {
				fmt.Printf("  %s\n", e.Key())
			}
		}
	}
}
