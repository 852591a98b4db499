package services

import (
	"fmt"
	"strings"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// summaryOperationOrder fixes the section order of the digest.
var summaryOperationOrder = []models.PatchOperation{
	models.OpCreate, models.OpMerge, models.OpUpdate, models.OpStale, models.OpDelete,
}

var summaryOperationHeadings = map[models.PatchOperation]string{
	models.OpCreate: "Created",
	models.OpMerge:  "Merged",
	models.OpUpdate: "Updated",
	models.OpStale:  "Marked stale",
	models.OpDelete: "Deleted",
}

// BuildSummary renders a deterministic markdown digest of one application
// run, grouped by operation, with skipped and escalated patches listed after
// the applied sections.
func BuildSummary(result *models.PatchApplicationResult) string {
	var b strings.Builder

	b.WriteString("## Signal Processing Summary\n\n")
	b.WriteString(fmt.Sprintf("Applied %d change(s): %d created, %d merged, %d updated, %d staled, %d deleted. %d skipped, %d escalated for review.\n",
		result.TotalApplied(), result.CreatedCount, result.MergedCount,
		result.UpdatedCount, result.StaledCount, result.DeletedCount,
		len(result.Skipped), len(result.Escalated)))

	for _, op := range summaryOperationOrder {
		var entries []models.AppliedPatch
		for _, applied := range result.Applied {
			if applied.Operation == op {
				entries = append(entries, applied)
			}
		}
		if len(entries) == 0 {
			continue
		}

		b.WriteString(fmt.Sprintf("\n### %s\n\n", summaryOperationHeadings[op]))
		for _, entry := range entries {
			name := entry.Name
			if name == "" {
				name = entry.EntityID.String()
			}
			b.WriteString(fmt.Sprintf("- **%s** (%s)\n", name, entry.EntityType))
		}
	}

	if len(result.Skipped) > 0 {
		b.WriteString("\n### Skipped\n\n")
		for _, skipped := range result.Skipped {
			b.WriteString(fmt.Sprintf("- %s: %s\n", skipped.Patch.Summary(), skipped.Reason))
		}
	}

	if len(result.Escalated) > 0 {
		b.WriteString("\n### Needs Review\n\n")
		for _, escalated := range result.Escalated {
			line := fmt.Sprintf("- %s (confidence: %s", escalated.Patch.Summary(), escalated.Confidence)
			if escalated.Reasoning != "" {
				line += ", " + escalated.Reasoning
			}
			b.WriteString(line + ")\n")
		}
	}

	return b.String()
}
