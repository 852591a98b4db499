package services

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// MatchAction is the outcome of the tiered matching decision for one patch.
type MatchAction string

const (
	// MatchNone: no candidate matched; the patch stays a create.
	MatchNone MatchAction = "none"
	// MatchExact: tier 1 fired on normalized name equality.
	MatchExact MatchAction = "exact_name"
	// MatchFuzzy: tier 2 fired at or above the fuzzy_merge threshold.
	MatchFuzzy MatchAction = "fuzzy"
	// MatchAmbiguous: tier 2 landed in the ambiguous band; the caller must
	// run the embedding tier against the returned candidate.
	MatchAmbiguous MatchAction = "ambiguous"
)

// MatchDecision is the result of matching one create patch against the
// existing candidate set. Pure data; the embedding tier's I/O happens in the
// deduplicator, not here.
type MatchDecision struct {
	Action    MatchAction
	Candidate *models.Entity
	Score     float64
}

// TypeThresholds holds the per-entity-type dedup thresholds. An
// EmbeddingMerge of 0 disables the embedding tier for that type.
type TypeThresholds struct {
	FuzzyMerge     float64
	FuzzyAmbiguous float64
	EmbeddingMerge float64
}

// DedupConfig maps entity types to their matching thresholds.
type DedupConfig struct {
	Thresholds map[models.EntityType]TypeThresholds
}

// DefaultDedupConfig returns the default per-type thresholds. Short-named
// types (competitor, stakeholder, persona) match on name only: their names
// are too short and ambiguous to embed meaningfully.
func DefaultDedupConfig() DedupConfig {
	standard := TypeThresholds{FuzzyMerge: 0.85, FuzzyAmbiguous: 0.50, EmbeddingMerge: 0.90}
	nameOnly := TypeThresholds{FuzzyMerge: 0.85, FuzzyAmbiguous: 0.50, EmbeddingMerge: 0}

	return DedupConfig{
		Thresholds: map[models.EntityType]TypeThresholds{
			models.TypeFeature:        standard,
			models.TypeDataEntity:     standard,
			models.TypeWorkflow:       standard,
			models.TypeWorkflowStep:   standard,
			models.TypeConstraint:     {FuzzyMerge: 0.80, FuzzyAmbiguous: 0.45, EmbeddingMerge: 0.88},
			models.TypeBusinessDriver: {FuzzyMerge: 0.90, FuzzyAmbiguous: 0.60, EmbeddingMerge: 0.92},
			models.TypeCompetitor:     nameOnly,
			models.TypeStakeholder:    nameOnly,
			models.TypePersona:        nameOnly,
		},
	}
}

// ThresholdsFor returns the thresholds for a type, falling back to the
// standard feature thresholds for unlisted types.
func (c DedupConfig) ThresholdsFor(entityType models.EntityType) TypeThresholds {
	if t, ok := c.Thresholds[entityType]; ok {
		return t
	}
	return TypeThresholds{FuzzyMerge: 0.85, FuzzyAmbiguous: 0.50, EmbeddingMerge: 0.90}
}

// genericDriverPhrases are business-driver descriptions too generic to
// deduplicate by text similarity: they score high against unrelated drivers.
var genericDriverPhrases = map[string]bool{
	"increase revenue":        true,
	"reduce costs":            true,
	"reduce cost":             true,
	"grow revenue":            true,
	"improve efficiency":      true,
	"increase efficiency":     true,
	"improve user experience": true,
	"customer satisfaction":   true,
	"save time":               true,
	"save money":              true,
}

// isGenericDriverText reports whether a business-driver name is too short or
// too generic for similarity matching.
func isGenericDriverText(name string) bool {
	normalized := NormalizeName(name)
	return len(normalized) < 20 || genericDriverPhrases[normalized]
}

// isGenericDriverPatch extends the guard to the payload description, which
// the embedding tier feeds into its text representation: a specific name with
// a generic description still scores high against unrelated drivers.
func isGenericDriverPatch(patch *models.EntityPatch) bool {
	if isGenericDriverText(patch.DisplayName()) {
		return true
	}
	if desc, ok := patch.Payload["description"].(string); ok && desc != "" {
		return isGenericDriverText(desc)
	}
	return false
}

// NormalizeName lower-cases a display name and strips every character that is
// not a letter, digit, or space, collapsing runs of whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TokenSetRatio computes an order-independent similarity in [0,1] between two
// names: the max of token-set Jaccard overlap and the Levenshtein ratio of
// the sorted token joins. Empty input on either side scores 0.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	jaccard := float64(intersection) / float64(union)

	joinedA := joinSorted(tokensA)
	joinedB := joinSorted(tokensB)
	lev := levenshteinRatio(joinedA, joinedB)

	if jaccard > lev {
		return jaccard
	}
	return lev
}

func tokenSet(name string) map[string]bool {
	set := map[string]bool{}
	for _, token := range strings.Fields(NormalizeName(name)) {
		set[token] = true
	}
	return set
}

func joinSorted(tokens map[string]bool) string {
	sorted := make([]string, 0, len(tokens))
	for token := range tokens {
		sorted = append(sorted, token)
	}
	// Insertion sort: token sets are tiny.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return strings.Join(sorted, " ")
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// Match runs tiers 1 and 2 of the dedup strategy for one create patch
// against the candidate entities of the same type. The embedding tier is
// signalled via MatchAmbiguous and executed by the caller (it needs I/O).
func Match(patch *models.EntityPatch, candidates []*models.Entity, cfg DedupConfig) MatchDecision {
	name := patch.DisplayName()
	if name == "" || len(candidates) == 0 {
		return MatchDecision{Action: MatchNone}
	}

	if patch.EntityType == models.TypeBusinessDriver && isGenericDriverPatch(patch) {
		return MatchDecision{Action: MatchNone}
	}

	normalized := NormalizeName(name)
	thresholds := cfg.ThresholdsFor(patch.EntityType)

	// Tier 1: exact normalized name.
	for _, candidate := range candidates {
		if NormalizeName(candidate.Name) == normalized {
			return MatchDecision{Action: MatchExact, Candidate: candidate, Score: 1}
		}
	}

	// Tier 2: best fuzzy token-set score.
	var (
		best      *models.Entity
		bestScore float64
	)
	for _, candidate := range candidates {
		score := TokenSetRatio(name, candidate.Name)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	switch {
	case best != nil && bestScore >= thresholds.FuzzyMerge:
		return MatchDecision{Action: MatchFuzzy, Candidate: best, Score: bestScore}
	case best != nil && bestScore >= thresholds.FuzzyAmbiguous && thresholds.EmbeddingMerge > 0:
		return MatchDecision{Action: MatchAmbiguous, Candidate: best, Score: bestScore}
	default:
		return MatchDecision{Action: MatchNone}
	}
}
