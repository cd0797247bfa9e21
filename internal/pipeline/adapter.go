package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"prozorro/internal"
	"prozorro/internal/storage"
	"prozorro/internal/transform"
	"prozorro/internal/util"
)

// TenderSource is a pull-based, single-pass supply of raw tender records.
type TenderSource interface {
	Next() (internal.Raw, bool, error)
}

// RecordResult is the per-record outcome of the stream adapter: entities on
// success, a skip marker for tenders without contracts, or the failure
// reason. Exactly one of Entities/Skipped/Err is meaningful.
type RecordResult struct {
	TenderID string
	RecordID string
	Entities []*internal.Entity
	Skipped  bool
	Err      error
}

type StreamStats struct {
	Processed int
	Skipped   int
	Failed    int
	Entities  int
}

func (s StreamStats) Counts(uploaded int) internal.RunCounts {
	return internal.RunCounts{
		Processed: s.Processed,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Uploaded:  uploaded,
	}
}

// Processor isolates per-record transform failures: a malformed tender is
// logged, its raw record persisted for reprocessing, and the batch
// continues.
type Processor struct {
	transformer *transform.Transformer
	db          *storage.DB
	failedDir   string
	log         zerolog.Logger
}

// NewProcessor builds a processor. db may be nil for one-off local runs;
// failures are then only dumped to failedDir.
func NewProcessor(reg *transform.Registry, db *storage.DB, failedDir string, log zerolog.Logger) *Processor {
	return &Processor{
		transformer: transform.New(reg, log),
		db:          db,
		failedDir:   failedDir,
		log:         log,
	}
}

// Process transforms a single tender. Tenders without a contracts section
// carry too little relational data and are skipped wholesale.
func (p *Processor) Process(tender internal.Raw) RecordResult {
	result := RecordResult{
		TenderID: tender.String("tenderID"),
		RecordID: tender.String("id"),
	}
	if !tender.Has("contracts") {
		result.Skipped = true
		return result
	}
	result.Entities, result.Err = p.transformer.Transform(tender)
	return result
}

// EntityStream adapts a tender source into one lazy entity stream: each
// tender is transformed fully before the next is pulled, failed tenders are
// sidelined without aborting the batch, and source errors propagate through
// the stream's Err.
func (p *Processor) EntityStream(tenders TenderSource, stats *StreamStats) *internal.EntityStream {
	var pending []*internal.Entity
	return internal.NewEntityStream(func() (*internal.Entity, bool, error) {
		for {
			if len(pending) > 0 {
				entity := pending[0]
				pending = pending[1:]
				stats.Entities++
				return entity, true, nil
			}

			tender, ok, err := tenders.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}

			result := p.Process(tender)
			switch {
			case result.Skipped:
				stats.Skipped++
				p.log.Info().
					Str("tenderID", result.TenderID).
					Msg("no contracts in tender, skipping")
			case result.Err != nil:
				stats.Failed++
				p.sideline(tender, result)
			default:
				stats.Processed++
				p.log.Info().
					Str("tenderID", result.TenderID).
					Int("entities", len(result.Entities)).
					Msg("tender transformed")
				pending = result.Entities
			}
		}
	})
}

func (p *Processor) sideline(tender internal.Raw, result RecordResult) {
	rawPath, dumpErr := p.dumpRaw(tender, result)
	if dumpErr != nil {
		p.log.Error().
			Str("tenderID", result.TenderID).
			Err(dumpErr).
			Msg("failed to persist raw tender")
	}

	p.log.Error().
		Str("tenderID", result.TenderID).
		Err(result.Err).
		Msg("failed to transform tender, skipping it")

	if p.db != nil {
		if err := p.db.RecordFailure(failureKey(result), result.RecordID, result.Err.Error(), rawPath); err != nil {
			p.log.Error().
				Str("tenderID", result.TenderID).
				Err(err).
				Msg("failed to index tender failure")
		}
	}
}

func (p *Processor) dumpRaw(tender internal.Raw, result RecordResult) (string, error) {
	blob, err := json.Marshal(tender)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.failedDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.failedDir, util.SanitizeFilename(failureKey(result))+".json")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func failureKey(result RecordResult) string {
	if result.TenderID != "" {
		return result.TenderID
	}
	if result.RecordID != "" {
		return result.RecordID
	}
	return "unknown"
}
