package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/nkaeser/pilzwetter/internal/fetch"
	"github.com/nkaeser/pilzwetter/internal/httputil"
	"github.com/nkaeser/pilzwetter/internal/ingest"
	"github.com/nkaeser/pilzwetter/internal/meta"
	"github.com/nkaeser/pilzwetter/internal/pipeline"
	"github.com/nkaeser/pilzwetter/internal/store"
)

var cli struct {
	Metrics     bool   `short:"m" help:"Also compute and persist the metrics table."`
	Debug       bool   `short:"d" help:"Enable debug logging."`
	Update      bool   `short:"u" help:"Merge new rows into the existing weather table instead of a full reload."`
	DataDir     string `help:"Directory for persisted tables and metadata snapshots." default:"data" env:"PILZWETTER_DATA_DIR"`
	DB          string `help:"Path to the SQLite fetch log." default:"data/pilzwetter.db" env:"PILZWETTER_DB"`
	Concurrency int    `help:"Parallel feed downloads." default:"4" env:"PILZWETTER_CONCURRENCY"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("pilzwetter"),
		kong.Description("Prepares hourly station weather data and trailing metrics for the dashboard."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cli.DB), 0o755); err != nil {
		log.Fatalf("create db dir: %v", err)
	}
	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// All reference timestamps are normalized to this zone; without it the
	// DST policy cannot be applied, so failing to load it is fatal.
	loc, err := time.LoadLocation(ingest.TimeZone)
	if err != nil {
		log.Fatalf("load timezone %s: %v", ingest.TimeZone, err)
	}

	client := httputil.NewClient()

	loader := meta.NewLoader(client, cli.DataDir, cli.Debug)
	parameters, err := loader.Parameters(ctx)
	if err != nil {
		log.Fatalf("load parameters metadata: %v", err)
	}
	stations, err := loader.Stations(ctx)
	if err != nil {
		log.Fatalf("load stations metadata: %v", err)
	}
	if _, err := loader.DataInventory(ctx); err != nil {
		log.Fatalf("load data inventory metadata: %v", err)
	}
	log.Printf("metadata loaded: %d stations, %d parameters", len(stations), len(parameters))

	fetcher := fetch.NewFetcher(client, st, cli.Concurrency, cli.Debug)
	ingester := ingest.NewIngester(parameters, loc, cli.Debug)
	tables := store.NewTables(cli.DataDir)

	p := pipeline.New(fetcher, ingester, tables, stations, loc, clockwork.NewRealClock(), cli.Debug)

	mode := pipeline.FullReload
	if cli.Update {
		mode = pipeline.Incremental
	}
	if err := p.Run(ctx, mode, cli.Metrics); err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	log.Println("done")
}
