// Package audit records one structured run record per processed signal for
// offline replay and debugging. The sink is write-only from the pipeline's
// perspective and never read back mid-run.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// RunRecord captures everything a signal run decided, for offline replay.
type RunRecord struct {
	SignalID  uuid.UUID `yaml:"signal_id"`
	ProjectID uuid.UUID `yaml:"project_id"`
	StartedAt time.Time `yaml:"started_at"`
	Duration  string    `yaml:"duration"`

	ChunkCount       int `yaml:"chunk_count"`
	ExtractedPatches int `yaml:"extracted_patches"`
	MergedToExisting int `yaml:"merged_to_existing"`
	EscalatedPatches int `yaml:"escalated_patches"`
	SkippedPatches   int `yaml:"skipped_patches"`
	EntitiesModified int `yaml:"entities_modified"`

	ContextInventory string `yaml:"context_inventory,omitempty"`
	ContextMemory    string `yaml:"context_memory,omitempty"`
	ContextGaps      string `yaml:"context_gaps,omitempty"`

	Result *models.PatchApplicationResult `yaml:"result,omitempty"`
	Error  string                         `yaml:"error,omitempty"`
}

// Sink writes run records to the structured log and, when a dump directory is
// configured, to one YAML file per run.
type Sink struct {
	dumpDir string
	logger  *zap.Logger
}

// NewSink creates a new audit sink. dumpDir may be empty to disable YAML
// dumps.
func NewSink(dumpDir string, logger *zap.Logger) *Sink {
	return &Sink{
		dumpDir: dumpDir,
		logger:  logger.Named("audit"),
	}
}

// Record writes one run record. Failures are logged and swallowed: the audit
// trail is advisory and never fails a pipeline run.
func (s *Sink) Record(record *RunRecord) {
	s.logger.Info("signal run recorded",
		zap.String("signal_id", record.SignalID.String()),
		zap.String("project_id", record.ProjectID.String()),
		zap.Int("chunks", record.ChunkCount),
		zap.Int("extracted", record.ExtractedPatches),
		zap.Int("merged_to_existing", record.MergedToExisting),
		zap.Int("escalated", record.EscalatedPatches),
		zap.Int("skipped", record.SkippedPatches),
		zap.Int("entities_modified", record.EntitiesModified),
		zap.String("duration", record.Duration),
		zap.String("error", record.Error))

	if s.dumpDir == "" {
		return
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		s.logger.Warn("failed to marshal run record", zap.Error(err))
		return
	}

	name := fmt.Sprintf("run-%s-%s.yaml", record.StartedAt.UTC().Format("20060102-150405"), record.SignalID)
	if err := os.WriteFile(filepath.Join(s.dumpDir, name), data, 0o644); err != nil {
		s.logger.Warn("failed to dump run record", zap.Error(err))
	}
}
