package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"prozorro/internal"
	"prozorro/internal/aleph"
	"prozorro/internal/config"
	"prozorro/internal/logging"
	"prozorro/internal/pipeline"
	"prozorro/internal/storage"
	"prozorro/internal/transform"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logging.New(cfg.LogsDir)
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "etl:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		from := fs.String("from", "", "window start, YYYY-MM-DD or RFC3339")
		to := fs.String("to", "", "window end (exclusive), empty = open")
		chunk := fs.Int("chunk", cfg.AlephChunkSize, "upload chunk size")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*from) == "" {
			must(fmt.Errorf("--from is required"))
		}
		cfg.AlephChunkSize = *chunk
		must(cfg.Require("ALEPH_URL", cfg.AlephBaseURL))
		must(cfg.Require("ALEPH_API_KEY", cfg.AlephAPIKey))
		must(cfg.Require("ALEPH_FOREIGN_ID", cfg.AlephForeignID))
		etl := pipeline.NewETL(cfg, db, log)
		counts, err := etl.Run(context.Background(), *from, *to)
		if err != nil {
			log.Error().Err(err).Msg("etl run failed, exiting with non-zero status")
			os.Exit(1)
		}
		fmt.Printf("etl run done processed=%d skipped=%d failed=%d uploaded=%d\n",
			counts.Processed, counts.Skipped, counts.Failed, counts.Uploaded)
	case "etl:watch":
		must(cfg.Require("ALEPH_URL", cfg.AlephBaseURL))
		must(cfg.Require("ALEPH_API_KEY", cfg.AlephAPIKey))
		must(cfg.Require("ALEPH_FOREIGN_ID", cfg.AlephForeignID))
		etl := pipeline.NewETL(cfg, db, log)
		must(etl.Watch(context.Background()))
	case "transform:file":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "tender json file")
		out := fs.String("out", "", "output xlsx path")
		upload := fs.Bool("upload", false, "upload entities to aleph")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		tender, err := pipeline.ReadTenderFile(*input)
		must(err)
		processor := pipeline.NewProcessor(transform.NewRegistry(), db, cfg.FailedDir, log)
		result := processor.Process(tender)
		if result.Skipped {
			fmt.Printf("tender %s has no contracts, nothing to transform\n", result.TenderID)
			return
		}
		must(result.Err)
		fmt.Printf("transformed tender %s entities=%d\n", result.TenderID, len(result.Entities))

		if strings.TrimSpace(*out) != "" {
			must(pipeline.ExportEntitiesToXLSX(result.Entities, *out))
			fmt.Printf("exported %d entities to %s\n", len(result.Entities), *out)
		}
		if *upload {
			must(uploadEntities(cfg, log, result.Entities))
		}
	case "transform:dir":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", "", "directory of tender json files")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*dir) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--dir and --out are required"))
		}

		source, err := pipeline.NewDirSource(*dir)
		must(err)
		processor := pipeline.NewProcessor(transform.NewRegistry(), db, cfg.FailedDir, log)
		stats := pipeline.StreamStats{}
		entities, err := processor.EntityStream(source, &stats).Collect()
		must(err)
		must(pipeline.ExportEntitiesToXLSX(entities, *out))
		fmt.Printf("transform dir done processed=%d skipped=%d failed=%d entities=%d output=%s\n",
			stats.Processed, stats.Skipped, stats.Failed, len(entities), *out)
	case "failures:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max rows")
		_ = fs.Parse(os.Args[2:])
		failures, err := db.ListFailures(*limit)
		must(err)
		if len(failures) == 0 {
			fmt.Println("no sidelined tenders")
			return
		}
		for _, f := range failures {
			fmt.Printf("%s\t%s\t%s\t%s\n", f.TenderID, f.CreatedAt, f.RawPath, f.Reason)
		}
	case "failures:retry":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max tenders to retry")
		_ = fs.Parse(os.Args[2:])
		etl := pipeline.NewETL(cfg, db, log)
		retried, err := etl.RetryFailures(context.Background(), *limit)
		if err != nil {
			log.Error().Err(err).Msg("failures retry aborted, exiting with non-zero status")
			os.Exit(1)
		}
		fmt.Printf("failures retry done recovered=%d\n", retried)
	default:
		usage()
		os.Exit(1)
	}
}

func uploadEntities(cfg config.Config, log zerolog.Logger, entities []*internal.Entity) error {
	ctx := context.Background()
	client := aleph.NewClient(cfg)
	collection, err := client.ResolveCollection(ctx, cfg.AlephForeignID)
	if err != nil {
		return err
	}
	written, err := client.WriteEntities(ctx, collection.ID, internal.EntitySlice(entities), cfg.AlephChunkSize)
	if err != nil {
		return err
	}
	log.Info().
		Int("uploaded", written).
		Str("collection", collection.ForeignID).
		Msg("entities uploaded")
	return nil
}

func usage() {
	fmt.Println("usage: prozorro <command>")
	fmt.Println("commands:")
	fmt.Println("  etl:run --from=2022-01-01 [--to=2022-10-31] [--chunk=1000]")
	fmt.Println("  etl:watch")
	fmt.Println("  transform:file --input=tender.json [--out=entities.xlsx] [--upload]")
	fmt.Println("  transform:dir --dir=./tenders --out=entities.xlsx")
	fmt.Println("  failures:list [--limit=50]")
	fmt.Println("  failures:retry [--limit=50]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
