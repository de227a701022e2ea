package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ftkghost/SuperSaver/internal/app"
	"github.com/ftkghost/SuperSaver/internal/crawl"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	var (
		source      string
		input       string
		now         int64
		concurrency int
		dryRun      bool
	)
	flag.StringVar(&source, "source", "", "data source name, e.g. grabone.co.nz")
	flag.StringVar(&input, "input", "-", "observations file, one JSON object per line (- for stdin)")
	flag.Int64Var(&now, "now", 0, "session clock in epoch seconds (default: wall clock)")
	flag.IntVar(&concurrency, "concurrency", 0, "concurrent observations (default: CRAWL_CONCURRENCY)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and print the planned changes without writing")
	flag.Parse()

	if strings.TrimSpace(source) == "" {
		fmt.Fprintln(os.Stderr, "-source is required")
		flag.Usage()
		return 2
	}
	if now == 0 {
		now = time.Now().Unix()
	}

	observations, err := readInput(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read observations: %v\n", err)
		return 1
	}

	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		return 1
	}
	defer application.Close()
	log := application.Log.With("source", source)

	files, err := crawl.LoadFileConfig(application.Cfg.CrawlConfigPath)
	if err != nil {
		log.Error("load crawl config", "error", err)
		return 1
	}
	settings, ok := files.Source(source)
	if !ok {
		log.Error("unknown data source", "source", source)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds := settings.DataSource()
	if err := application.Repos.Catalog.DataSources.Upsert(dbctx.Context{Ctx: ctx}, ds); err != nil {
		log.Error("upsert data source", "error", err)
		return 1
	}

	if dryRun {
		entries, err := crawl.Plan(ctx, application.CrawlDeps(), ds.ID, observations)
		if err != nil {
			log.Error("plan", "error", err)
			return 1
		}
		enc := json.NewEncoder(os.Stdout)
		for _, e := range entries {
			_ = enc.Encode(e)
		}
		return 0
	}

	seeded, err := files.SeedRegions(ctx, application.Repos.Catalog.Regions, ds.CountryCode)
	if err != nil {
		log.Error("seed regions", "error", err)
		return 1
	}
	log.Debug("regions seeded", "country", ds.CountryCode, "count", seeded)

	if concurrency <= 0 {
		concurrency = application.Cfg.Concurrency
	}
	cfg := settings.SessionConfig(crawl.SessionConfig{
		Now:         now,
		Concurrency: concurrency,
		LockTTL:     application.Cfg.LockTTL,
	})

	session, err := crawl.Open(ctx, application.CrawlDeps(), cfg)
	if err != nil {
		log.Error("open crawl session", "error", err)
		return 1
	}
	ingestErr := session.Ingest(ctx, observations)
	if err := session.Close(context.WithoutCancel(ctx), ingestErr); err != nil {
		log.Error("close crawl session", "error", err)
		return 1
	}

	st := session.Stats()
	fmt.Printf("run=%s observed=%d applied=%d failed=%d conflicts=%d swept=%d\n",
		session.RunID(), st.Observed, st.Applied, st.Failed, st.Conflicts, st.Swept)
	if ingestErr != nil {
		log.Error("ingest stopped", "error", ingestErr)
		return 1
	}
	return 0
}

func readInput(path string) ([]crawl.Observation, error) {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return crawl.ReadObservations(r)
}
