package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rank-observer/src/config"
	"rank-observer/src/data_source/nse"
	"rank-observer/src/export"
	"rank-observer/src/logger"
	"rank-observer/src/models"
	"rank-observer/src/network"
	"rank-observer/src/ranking"

	"github.com/tidwall/pretty"
)

// once replays saved index responses, or fetches live ones, through a single
// processor and prints the last enriched table.
func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	sourceName := flag.String("source", "", "configured source to use (default: first)")
	inputs := flag.String("input", "", "comma separated JSON responses, one tick each")
	ticks := flag.Int("ticks", 1, "live fetches to run when no input is given")
	format := flag.String("format", "json", "output format: json or csv")
	outPath := flag.String("out", "", "output file (default: stdout)")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(conf, "once")
	defer appLogger.Sync()

	sourceCfg, err := pickSource(conf.MConfig, *sourceName)
	if err != nil {
		appLogger.Critical("%v", err)
	}

	snapshots, err := loadSnapshots(conf.MConfig, sourceCfg, splitInputs(*inputs), *ticks, appLogger)
	if err != nil {
		appLogger.Critical("%v", err)
	}

	processor := ranking.NewProcessor(appLogger.Named("Processor"))
	var table *models.MEnrichedTable
	for _, snap := range snapshots {
		if table, err = processor.Process(snap); err != nil {
			appLogger.Critical("Tick %d failed: %v", processor.Tick()+1, err)
		}
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			appLogger.Critical("Failed to create %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}

	if err := write(out, table, *format); err != nil {
		appLogger.Critical("Failed to write output: %v", err)
	}
}

// -----------------------------------------------------------------------------

func pickSource(cfg *models.MConfig, name string) (models.MSourceConfig, error) {
	if name == "" {
		return cfg.DataSource.Sources[0], nil
	}
	for _, src := range cfg.DataSource.Sources {
		if src.Name == name {
			return src, nil
		}
	}
	return models.MSourceConfig{}, fmt.Errorf("source '%s' is not configured", name)
}

// -----------------------------------------------------------------------------

func splitInputs(list string) []string {
	var files []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

// -----------------------------------------------------------------------------

func loadSnapshots(cfg *models.MConfig, sourceCfg models.MSourceConfig, files []string, ticks int, log *logger.Logger) ([]*models.MSnapshot, error) {
	var snapshots []*models.MSnapshot

	if len(files) > 0 {
		for _, file := range files {
			body, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", file, err)
			}
			snap, err := nse.ParseIndexResponse(body, sourceCfg.Name, sourceCfg.Columns, time.Now())
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", file, err)
			}
			snapshots = append(snapshots, snap)
		}
		return snapshots, nil
	}

	session := network.NewSessionManager(cfg, log.Named("SessionManager"))
	source := nse.NewIndexSource(cfg, sourceCfg, session, log)
	interval := time.Duration(cfg.DataSource.UpdateIntervalSeconds) * time.Second

	for i := 0; i < ticks; i++ {
		if i > 0 {
			log.Info("Waiting %s for the next fetch...", interval)
			time.Sleep(interval)
		}
		snap, err := source.FetchSnapshot(context.Background())
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// -----------------------------------------------------------------------------

func write(w io.Writer, table *models.MEnrichedTable, format string) error {
	switch format {
	case "csv":
		return export.WriteCSV(w, table)
	case "json":
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(table); err != nil {
			return err
		}
		_, err := w.Write(pretty.Pretty(buf.Bytes()))
		return err
	default:
		return fmt.Errorf("unknown format '%s'", format)
	}
}
