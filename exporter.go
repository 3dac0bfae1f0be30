package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rtm0/aeolus/analysis"
	"github.com/rtm0/aeolus/calc"
	"github.com/rtm0/aeolus/internal/era5"
	"github.com/rtm0/aeolus/internal/vm"
	"github.com/rtm0/aeolus/model"
)

var (
	file          = flag.String("file", "", "path to a dataset in NetCDF format")
	variable      = flag.String("var", "t2m", "variable to reduce; its first dimension must be time")
	stats         = flag.String("stats", "mean,min,max", "comma-separated spatial statistics, e.g. mean,median,p25,p75")
	modelName     = flag.String("model", "era5", "coordinate naming convention: um, lfric or era5")
	modelFile     = flag.String("modelFile", "", "YAML file with coordinate names; overrides -model")
	concurrency   = flag.Int("concurrency", runtime.NumCPU(), "number of concurrent requests to Victoria Metrics")
	recsPerInsert = flag.Int("recsPerInsert", 500, "number of records sent to VM in one batch")
	vmInsertURL   = flag.String("vmInsertUrl", "http://localhost:8428/write", "Victoria Metrics insert API URL. Default: InfluxDB line protocol v2")
	metricPrefix  = flag.String("metricPrefix", "aeolus", "prefix of the metric names")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, logger); err != nil {
		logger.Error("Export failed", "err", err)
		os.Exit(1)
	}
}

func loadModel() (model.Model, error) {
	if *modelFile != "" {
		return model.LoadFile(*modelFile)
	}
	return model.ByName(*modelName)
}

func run(ctx context.Context, logger *slog.Logger) error {
	m, err := loadModel()
	if err != nil {
		return fmt.Errorf("could not load model: %w", err)
	}

	statNames := strings.Split(*stats, ",")
	for i, name := range statNames {
		statNames[i] = strings.TrimSpace(name)
		if _, err := analysis.Lookup(statNames[i]); err != nil {
			return err
		}
	}

	vmCli, err := vm.NewClient(logger, *vmInsertURL, *concurrency, *metricPrefix, statNames)
	if err != nil {
		return fmt.Errorf("could not create new VM client: %w", err)
	}

	s, err := era5.NewScanner(*file, *variable, m)
	if err != nil {
		return fmt.Errorf("could not create a scanner: %w", err)
	}
	defer s.Close()
	logger.Info("Dataset summary", s.Summary()...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	var inserted atomic.Int64
	total := float64(s.Steps())
	start := time.Now()
	insert := func(recs []era5.Record) {
		g.Go(func() error {
			if err := vmCli.Insert(gctx, recs); err != nil {
				return err
			}
			n := inserted.Add(int64(len(recs)))
			percent := fmt.Sprintf("%.2f%%", 100*float64(n)/total)
			duration := time.Since(start).Round(1 * time.Second)
			logger.Info("progress", "inserted", percent, "in", duration)
			return nil
		})
	}

	batch := make([]era5.Record, 0, *recsPerInsert)
	for gctx.Err() == nil && s.Scan() {
		rec, err := reduce(s, statNames, m)
		if err != nil {
			g.Wait()
			return err
		}
		batch = append(batch, rec)
		if len(batch) == *recsPerInsert {
			insert(batch)
			batch = make([]era5.Record, 0, *recsPerInsert)
		}
	}
	if len(batch) > 0 {
		insert(batch)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// reduce computes the spatial statistics of the last scanned time step.
func reduce(s *era5.Scanner, statNames []string, m model.Model) (era5.Record, error) {
	rec := era5.Record{
		Timestamp: s.Timestamp(),
		Variable:  *variable,
		Stats:     make([]era5.Stat, 0, len(statNames)),
	}
	for _, name := range statNames {
		res, err := calc.Spatial(s.Cube(), name, m)
		if err != nil {
			return rec, fmt.Errorf("could not compute %s: %w", name, err)
		}
		if res.Ndim() != 0 {
			return rec, fmt.Errorf("%s of %q keeps dimensions %v; only horizontal fields are supported", name, *variable, res.Shape())
		}
		rec.Stats = append(rec.Stats, era5.Stat{Name: name, Value: res.Value()})
	}
	return rec, nil
}
