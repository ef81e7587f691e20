package usecase

import (
	"strings"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
)

// domainKeywords maps each sub-agent domain to the phrases that imply it.
// Matching is substring-based on the lower-cased message.
var domainKeywords = map[domain.AgentID][]string{
	domain.AgentEmail: {
		"email", "e-mail", "inbox", "mail", "compose", "reply to", "unread",
	},
	domain.AgentCalendar: {
		"calendar", "schedule", "meeting", "appointment", "event", "remind",
		"book a", "availability",
	},
	domain.AgentWebSearch: {
		"search", "find information", "look up", "google", "news", "research",
		"what is", "who is",
	},
	domain.AgentWeather: {
		"weather", "forecast", "temperature", "rain", "snow", "sunny", "umbrella",
	},
	domain.AgentMemory: {
		"remember", "recall", "memorize", "note down", "what did i", "save this",
	},
}

// intentPriority fixes the order used to pick the primary intent when a
// message touches several domains.
var intentPriority = []struct {
	agent  domain.AgentID
	intent string
}{
	{domain.AgentCalendar, "calendar management"},
	{domain.AgentEmail, "email management"},
	{domain.AgentWebSearch, "information retrieval"},
	{domain.AgentWeather, "weather lookup"},
	{domain.AgentMemory, "memory recall"},
}

const defaultIntent = "general assistance"

var approachByComplexity = map[domain.Complexity]string{
	domain.ComplexitySimple:   "Answer directly; delegate only if a specialist is clearly needed.",
	domain.ComplexityModerate: "Break the request into sub-tasks and delegate each to the matching specialist agent.",
	domain.ComplexityComplex:  "Plan before acting: decompose into ordered sub-tasks, delegate in sequence, and verify each result before composing the final answer.",
}

// TaskAnalyzer sizes an incoming request. It is a pure function of the
// message text; the result is advisory and only feeds the step budget and
// agent hints given to the orchestrator.
type TaskAnalyzer struct{}

func NewTaskAnalyzer() *TaskAnalyzer {
	return &TaskAnalyzer{}
}

// Analyze classifies one user message.
func (a *TaskAnalyzer) Analyze(message string) domain.TaskAnalysis {
	lower := strings.ToLower(message)
	words := len(strings.Fields(message))

	required := []domain.AgentID{domain.AgentOrchestrator}
	detected := make(map[domain.AgentID]bool)
	for _, p := range intentPriority {
		for _, kw := range domainKeywords[p.agent] {
			if strings.Contains(lower, kw) {
				required = append(required, p.agent)
				detected[p.agent] = true
				break
			}
		}
	}

	complexity := a.complexity(lower, words, len(required))

	intent := defaultIntent
	for _, p := range intentPriority {
		if detected[p.agent] {
			intent = p.intent
			break
		}
	}

	steps := len(required) * 2
	if steps < 3 {
		steps = 3
	}

	return domain.TaskAnalysis{
		PrimaryIntent:     intent,
		RequiredAgents:    required,
		Complexity:        complexity,
		EstimatedSteps:    steps,
		SuggestedApproach: approachByComplexity[complexity],
	}
}

func (a *TaskAnalyzer) complexity(lower string, words, agents int) domain.Complexity {
	conjunctions := strings.Count(lower, " and ")
	switch {
	case agents > 3 || conjunctions > 1 || words > 50:
		return domain.ComplexityComplex
	case agents > 1 || words > 20:
		return domain.ComplexityModerate
	default:
		return domain.ComplexitySimple
	}
}
