package prompts

import (
	"fmt"
	"strings"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// BuildScoringPrompt creates the prompt for the belief-alignment scoring pass.
// Patches are referenced by their zero-based index in the batch.
func BuildScoringPrompt(patches []*models.EntityPatch, beliefs []*models.Belief, questions []*models.OpenQuestion) string {
	var prompt strings.Builder

	prompt.WriteString("# Belief Alignment Check\n\n")
	prompt.WriteString("Assess how each proposed change relates to the project's standing beliefs and open questions.\n\n")

	prompt.WriteString("## Proposed Changes\n\n")
	for i, p := range patches {
		prompt.WriteString(fmt.Sprintf("### Patch %d\n", i))
		prompt.WriteString(fmt.Sprintf("- Operation: %s %s\n", p.Operation, p.EntityType))
		if name := p.DisplayName(); name != "" {
			prompt.WriteString(fmt.Sprintf("- Name: %s\n", name))
		}
		prompt.WriteString(fmt.Sprintf("- Confidence: %s (%s)\n", p.Confidence, p.ConfidenceReasoning))
		for _, ev := range p.Evidence {
			prompt.WriteString(fmt.Sprintf("- Evidence: %q\n", ev.Quote))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Standing Beliefs\n\n")
	if len(beliefs) == 0 {
		prompt.WriteString("(none)\n\n")
	}
	for _, b := range beliefs {
		prompt.WriteString(fmt.Sprintf("- [%s] %s\n", b.ID, b.Summary))
	}
	if len(beliefs) > 0 {
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Open Questions\n\n")
	if len(questions) == 0 {
		prompt.WriteString("(none)\n\n")
	}
	for _, q := range questions {
		prompt.WriteString(fmt.Sprintf("- [%s] %s\n", q.ID, q.Question))
	}
	if len(questions) > 0 {
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Assessment Rules\n\n")
	prompt.WriteString("- `adjustment`: \"bump\" when a patch is corroborated by a standing belief, \"drop\" when it contradicts one, \"none\" otherwise.\n")
	prompt.WriteString("- `belief_impacts`: zero or more entries per patch; `impact` is one of \"supports\", \"contradicts\", \"refines\".\n")
	prompt.WriteString("- `answers_question_id`: the id of an open question the patch resolves, if any.\n")
	prompt.WriteString("- Reference patches by their index above. Omit patches that need no assessment.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "assessments": [
    {
      "patch_index": 0,
      "adjustment": "bump",
      "belief_impacts": [
        {
          "belief_id": "4f9d2e30-0000-0000-0000-000000000000",
          "belief_summary": "Enterprise clients require SSO",
          "impact": "supports",
          "new_evidence": "Client restated the SSO requirement in the kickoff call"
        }
      ],
      "answers_question_id": null
    }
  ]
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildScoringSystemMessage returns the system message for scoring calls.
func BuildScoringSystemMessage() string {
	return `You are a requirements analyst checking new evidence against a project's established beliefs. You are conservative: you only report a contradiction when the new evidence and the belief cannot both be true.`
}
