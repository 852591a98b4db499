package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/jsonutil"
	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/logging"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/prompts"
)

const scoringTemperature = 0.1

// Scorer refines patch confidence in two passes: a mention-count heuristic
// that always runs, and an LLM belief-alignment pass that degrades to nothing
// when it fails or when there is nothing to check against.
type Scorer struct {
	client           llm.LLMClient
	mentionThreshold int
	logger           *zap.Logger
}

// NewScorer creates a new Scorer.
func NewScorer(client llm.LLMClient, mentionThreshold int, logger *zap.Logger) *Scorer {
	if mentionThreshold <= 0 {
		mentionThreshold = 3
	}
	return &Scorer{
		client:           client,
		mentionThreshold: mentionThreshold,
		logger:           logger.Named("scorer"),
	}
}

// scoringResponse mirrors the LLM's belief-alignment output.
type scoringResponse struct {
	Assessments []scoringAssessment `json:"assessments"`
}

type scoringAssessment struct {
	PatchIndex        json.RawMessage   `json:"patch_index"`
	Adjustment        json.RawMessage   `json:"adjustment"`
	BeliefImpacts     []rawBeliefImpact `json:"belief_impacts"`
	AnswersQuestionID json.RawMessage   `json:"answers_question_id"`
}

type rawBeliefImpact struct {
	BeliefID      json.RawMessage `json:"belief_id"`
	BeliefSummary json.RawMessage `json:"belief_summary"`
	Impact        json.RawMessage `json:"impact"`
	NewEvidence   json.RawMessage `json:"new_evidence"`
}

// Score mutates the patches' confidence, belief impacts, and answered
// questions in place. Pass 2 is skipped when beliefs and questions are both
// empty; its total failure leaves pass-1 results standing.
func (s *Scorer) Score(ctx context.Context, patches []*models.EntityPatch, beliefs []*models.Belief, questions []*models.OpenQuestion) {
	if len(patches) == 0 {
		return
	}

	// Pass 1: repetition across chunks is corroboration.
	for _, patch := range patches {
		if patch.MentionCount >= s.mentionThreshold {
			patch.Confidence = patch.Confidence.Bump()
		}
	}

	if len(beliefs) == 0 && len(questions) == 0 {
		return
	}

	s.scoreAgainstBeliefs(ctx, patches, beliefs, questions)
}

func (s *Scorer) scoreAgainstBeliefs(ctx context.Context, patches []*models.EntityPatch, beliefs []*models.Belief, questions []*models.OpenQuestion) {
	prompt := prompts.BuildScoringPrompt(patches, beliefs, questions)

	resp, err := s.client.GenerateResponse(ctx, prompt, prompts.BuildScoringSystemMessage(), scoringTemperature)
	if err != nil {
		s.logger.Warn("belief-alignment pass failed, keeping heuristic scores",
			zap.String("error", logging.SanitizeError(err)))
		return
	}

	parsed, err := llm.ParseJSONResponse[scoringResponse](resp.Content)
	if err != nil {
		s.logger.Warn("belief-alignment response unparseable, keeping heuristic scores",
			zap.Error(err))
		return
	}

	for _, assessment := range parsed.Assessments {
		idx := jsonutil.FlexibleIntValue(assessment.PatchIndex, -1)
		if idx < 0 || idx >= len(patches) {
			s.logger.Warn("ignoring assessment with out-of-range patch index",
				zap.Int("index", idx),
				zap.Int("batch_size", len(patches)))
			continue
		}
		s.applyAssessment(patches[idx], assessment)
	}
}

func (s *Scorer) applyAssessment(patch *models.EntityPatch, assessment scoringAssessment) {
	switch jsonutil.FlexibleStringValue(assessment.Adjustment) {
	case "bump":
		patch.Confidence = patch.Confidence.Bump()
	case "drop":
		// A contradiction is categorically different from low evidence:
		// drop lands directly on conflict from any tier.
		patch.Confidence = models.ConfidenceConflict
	}

	for _, raw := range assessment.BeliefImpacts {
		impact := models.BeliefImpact{
			BeliefSummary: jsonutil.FlexibleStringValue(raw.BeliefSummary),
			Impact:        models.BeliefImpactKind(jsonutil.FlexibleStringValue(raw.Impact)),
			NewEvidence:   jsonutil.FlexibleStringValue(raw.NewEvidence),
		}
		if !impact.Impact.IsValid() {
			continue
		}
		if idStr := jsonutil.FlexibleStringValue(raw.BeliefID); idStr != "" {
			if id, err := uuid.Parse(idStr); err == nil {
				impact.BeliefID = &id
			}
		}
		patch.BeliefImpacts = append(patch.BeliefImpacts, impact)
	}

	if idStr := jsonutil.FlexibleStringValue(assessment.AnswersQuestionID); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			patch.AnswersQuestionID = &id
		}
	}
}
