package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
)

// QueryType biases scoring toward the shapes of capability a query implies.
type QueryType string

const (
	QueryInformation QueryType = "information"
	QueryAnalysis    QueryType = "analysis"
	QueryTask        QueryType = "task"
	QueryGeneral     QueryType = "general"
)

// Scoring constants. The signal set mirrors the hand-tuned heuristic the
// orchestrator relies on; keep changes behavior-compatible or adjust the
// scorer tests alongside.
const (
	resourceTokenWeight = 0.20
	promptTokenWeight   = 0.25

	docBonus         = 0.30
	configBonus      = 0.20
	exampleBonus     = 0.25
	analysisBonus    = 0.40
	taskPromptBonus  = 0.30
	integrationBonus = 0.50
	helpBonus        = 0.10

	// RelevanceThreshold is the cut above which an entry is considered
	// relevant. Entries scoring exactly the threshold are excluded.
	RelevanceThreshold = 0.3
)

// stopWords are dropped during tokenization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "have": {}, "are": {}, "was": {}, "were": {}, "will": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "about": {},
	"into": {}, "your": {}, "you": {}, "our": {}, "their": {}, "them": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "how": {}, "who": {},
	"please": {}, "help": {}, "need": {}, "want": {}, "get": {}, "make": {},
}

// integrationNames is the allow-list of recognized app/service names.
// These are added as high-confidence tokens whenever they appear verbatim
// (case-insensitive) in the raw query, regardless of token length rules.
var integrationNames = []string{
	"slack", "github", "gmail", "jira", "notion", "discord", "linear",
	"asana", "trello", "zoom", "dropbox", "salesforce", "hubspot",
	"calendar", "drive", "sheets", "docs",
}

// ScoredEntry pairs a capability entry with its relevance outcome.
type ScoredEntry struct {
	Entry domain.CapabilityEntry
	domain.RelevanceScore
}

// Scorer ranks capability entries by relevance to a free-text query. The
// interface exists so the substring heuristic can later be replaced with
// embedding-based similarity without touching callers.
type Scorer interface {
	ScoreResource(query string, qt QueryType, entry domain.CapabilityEntry) domain.RelevanceScore
	ScorePrompt(query string, qt QueryType, entry domain.CapabilityEntry) domain.RelevanceScore
	RankResources(query string, qt QueryType, entries []domain.CapabilityEntry) []ScoredEntry
	RankPrompts(query string, qt QueryType, entries []domain.CapabilityEntry) []ScoredEntry
}

// KeywordScorer is the substring-match Scorer. Scoring is pure and
// deterministic for a fixed (query, entry, queryType) triple; no network.
type KeywordScorer struct{}

// NewKeywordScorer creates the default scorer.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Tokenize lower-cases the query, strips non-alphanumeric characters,
// splits on whitespace, drops stop words and tokens of one or two
// characters, then appends any integration names found verbatim in the
// raw query.
func (s *KeywordScorer) Tokenize(query string) []string {
	lower := strings.ToLower(query)

	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, name := range integrationNames {
		if !strings.Contains(lower, name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tokens = append(tokens, name)
	}
	return tokens
}

// DetectQueryType classifies a raw query into the type used for bonuses.
func DetectQueryType(query string) QueryType {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "analyze", "analyse", "analysis", "summarize", "summarise", "report", "insight", "review"):
		return QueryAnalysis
	case containsAny(lower, "create", "schedule", "send", "add", "write", "draft", "set up", "build", "generate"):
		return QueryTask
	case containsAny(lower, "what", "how", "find", "show", "explain", "information", "tell me", "look up"):
		return QueryInformation
	default:
		return QueryGeneral
	}
}

// ScoreResource scores one resource entry. Searchable text is the entry's
// name, URI, and description.
func (s *KeywordScorer) ScoreResource(query string, qt QueryType, entry domain.CapabilityEntry) domain.RelevanceScore {
	tokens := s.Tokenize(query)
	text := strings.ToLower(entry.Name + " " + entry.URI + " " + entry.Description)

	var score float64
	var reasons []string

	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			score += resourceTokenWeight
			reasons = append(reasons, fmt.Sprintf("matches keyword %q", tok))
		}
	}

	docShaped := strings.Contains(entry.MIMEType, "markdown") ||
		containsAny(text, "doc", "guide", "readme")
	if docShaped && qt == QueryInformation {
		score += docBonus
		reasons = append(reasons, "documentation resource for information query")
	}

	if containsAny(text, "config", "settings", "setup") && containsAny(strings.ToLower(query), "config", "settings", "setup") {
		score += configBonus
		reasons = append(reasons, "configuration resource")
	}

	if containsAny(text, "example", "template", "sample") && containsAny(strings.ToLower(query), "example", "template", "sample") {
		score += exampleBonus
		reasons = append(reasons, "example or template resource")
	}

	return domain.RelevanceScore{Score: clamp(score), Reasons: reasons}
}

// ScorePrompt scores one prompt entry. Searchable text is the entry's
// name and description only; prompts have no URI worth matching.
func (s *KeywordScorer) ScorePrompt(query string, qt QueryType, entry domain.CapabilityEntry) domain.RelevanceScore {
	tokens := s.Tokenize(query)
	text := strings.ToLower(entry.Name + " " + entry.Description)

	var score float64
	var reasons []string
	matched := make(map[string]bool)

	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			score += promptTokenWeight
			matched[tok] = true
			reasons = append(reasons, fmt.Sprintf("matches keyword %q", tok))
		}
	}

	if qt == QueryAnalysis && containsAny(text, "analy", "summar", "report", "digest", "insight") {
		score += analysisBonus
		reasons = append(reasons, "analysis prompt for analysis query")
	}

	if qt == QueryTask && containsAny(text, "creat", "generat", "task", "write", "draft", "schedule") {
		score += taskPromptBonus
		reasons = append(reasons, "task prompt for task query")
	}

	for _, name := range integrationNames {
		if matched[name] && strings.Contains(text, name) {
			score += integrationBonus
			reasons = append(reasons, fmt.Sprintf("integration-specific prompt for %s", name))
			break
		}
	}

	if containsAny(strings.ToLower(entry.Name), "help", "start", "welcome", "intro") {
		score += helpBonus
		reasons = append(reasons, "general help prompt")
	}

	return domain.RelevanceScore{Score: clamp(score), Reasons: reasons}
}

// RankResources scores all entries and returns those above the relevance
// threshold, best first.
func (s *KeywordScorer) RankResources(query string, qt QueryType, entries []domain.CapabilityEntry) []ScoredEntry {
	return s.rank(entries, func(e domain.CapabilityEntry) domain.RelevanceScore {
		return s.ScoreResource(query, qt, e)
	})
}

// RankPrompts scores all entries and returns those above the relevance
// threshold, best first.
func (s *KeywordScorer) RankPrompts(query string, qt QueryType, entries []domain.CapabilityEntry) []ScoredEntry {
	return s.rank(entries, func(e domain.CapabilityEntry) domain.RelevanceScore {
		return s.ScorePrompt(query, qt, e)
	})
}

func (s *KeywordScorer) rank(entries []domain.CapabilityEntry, score func(domain.CapabilityEntry) domain.RelevanceScore) []ScoredEntry {
	var relevant []ScoredEntry
	for _, e := range entries {
		rs := score(e)
		if rs.Score > RelevanceThreshold {
			relevant = append(relevant, ScoredEntry{Entry: e, RelevanceScore: rs})
		}
	}
	// Stable total order: score, then richer reasons, then entry key.
	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].Score != relevant[j].Score {
			return relevant[i].Score > relevant[j].Score
		}
		ri := len(strings.Join(relevant[i].Reasons, "; "))
		rj := len(strings.Join(relevant[j].Reasons, "; "))
		if ri != rj {
			return ri > rj
		}
		return relevant[i].Entry.Key() < relevant[j].Entry.Key()
	})
	return relevant
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(f float64) float64 {
	if f > 1.0 {
		return 1.0
	}
	if f < 0 {
		return 0
	}
	return f
}

// Compile-time interface check.
var _ Scorer = (*KeywordScorer)(nil)
