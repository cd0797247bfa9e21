package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prozorro/internal"
	"prozorro/internal/aleph"
	"prozorro/internal/config"
	"prozorro/internal/feed"
	"prozorro/internal/storage"
	"prozorro/internal/transform"
)

// ETL wires the tender feed, the stream adapter and the Aleph uploader into
// one synchronous pull pipeline. Collaborator faults are not swallowed
// here; they surface to the caller, which must exit non-zero.
type ETL struct {
	cfg   config.Config
	db    *storage.DB
	log   zerolog.Logger
	reg   *transform.Registry
	feed  *feed.Client
	aleph *aleph.Client
}

func NewETL(cfg config.Config, db *storage.DB, log zerolog.Logger) *ETL {
	return &ETL{
		cfg:   cfg,
		db:    db,
		log:   log,
		reg:   transform.NewRegistry(),
		feed:  feed.NewClient(cfg),
		aleph: aleph.NewClient(cfg),
	}
}

// Run processes the half-open dateModified window [from, to): fetch each
// tender, transform it fully, hand the entities to the chunked uploader.
func (e *ETL) Run(ctx context.Context, from, to string) (internal.RunCounts, error) {
	e.log.Info().
		Str("from", from).
		Str("to", to).
		Msg("starting tender window")

	collection, err := e.aleph.ResolveCollection(ctx, e.cfg.AlephForeignID)
	if err != nil {
		return internal.RunCounts{}, err
	}

	runID, err := e.db.InsertRun(uuid.NewString(), from, to)
	if err != nil {
		return internal.RunCounts{}, err
	}

	processor := NewProcessor(e.reg, e.db, e.cfg.FailedDir, e.log)
	stats := StreamStats{}
	stream := processor.EntityStream(e.feed.Tenders(ctx, from, to), &stats)

	uploaded, uploadErr := e.aleph.WriteEntities(ctx, collection.ID, stream, e.cfg.AlephChunkSize)
	counts := stats.Counts(uploaded)

	if err := e.db.FinishRun(runID, counts); err != nil {
		e.log.Error().Err(err).Msg("failed to record run counts")
	}
	_ = e.db.SetMetadata("etl.last_window_to", to)

	e.log.Info().
		Int("processed", counts.Processed).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Int("uploaded", counts.Uploaded).
		Msg("tender window done")
	return counts, uploadErr
}

// Watch runs incremental windows forever: each cycle covers the configured
// lookback up to now and leaves the upper bound open. A failed cycle is
// logged and the next one still runs.
func (e *ETL) Watch(ctx context.Context) error {
	interval := time.Duration(e.cfg.WatchIntervalSec) * time.Second
	for {
		from := time.Now().UTC().
			Add(-time.Duration(e.cfg.WatchLookbackHrs) * time.Hour).
			Format(time.RFC3339)
		if _, err := e.Run(ctx, from, ""); err != nil {
			e.log.Error().Err(err).Msg("watch cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RetryFailures re-transforms sidelined raw tenders and uploads the ones
// that now succeed, clearing their index entries.
func (e *ETL) RetryFailures(ctx context.Context, limit int) (int, error) {
	failures, err := e.db.ListFailures(limit)
	if err != nil {
		return 0, err
	}
	if len(failures) == 0 {
		return 0, nil
	}

	collection, err := e.aleph.ResolveCollection(ctx, e.cfg.AlephForeignID)
	if err != nil {
		return 0, err
	}

	processor := NewProcessor(e.reg, e.db, e.cfg.FailedDir, e.log)
	retried := 0
	for _, failure := range failures {
		tender, err := ReadTenderFile(failure.RawPath)
		if err != nil {
			e.log.Error().
				Str("tenderID", failure.TenderID).
				Err(err).
				Msg("failed to reload raw tender")
			continue
		}

		result := processor.Process(tender)
		if result.Err != nil {
			e.log.Warn().
				Str("tenderID", failure.TenderID).
				Err(result.Err).
				Msg("tender still fails, keeping it sidelined")
			continue
		}
		if result.Skipped {
			// no contracts; nothing to upload, but no point keeping it
			_ = e.db.DeleteFailure(failure.TenderID)
			continue
		}

		if _, err := e.aleph.WriteEntities(ctx, collection.ID, internal.EntitySlice(result.Entities), e.cfg.AlephChunkSize); err != nil {
			return retried, err
		}
		if err := e.db.DeleteFailure(failure.TenderID); err != nil {
			e.log.Error().
				Str("tenderID", failure.TenderID).
				Err(err).
				Msg("failed to clear failure entry")
		}
		retried++
	}
	return retried, nil
}
