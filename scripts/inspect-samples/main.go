package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/metrics"
	"dga-engine/internal/ml"
	"dga-engine/internal/normative"
	"dga-engine/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		labels   = flag.Bool("labels", false, "Label every sample and print the class distribution")
		workers  = flag.Int("workers", 4, "Labelling workers")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fmt.Printf("Inspecting samples in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	total, err := store.Count()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count samples")
	}
	transformers, err := store.Transformers()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transformers")
	}

	fmt.Printf("\n%d samples from %d transformers\n", total, len(transformers))
	fmt.Println(strings.Repeat("=", 60))

	for _, tr := range transformers {
		samples, err := store.GetSamplesInRange(tr, time.Time{}, time.Now())
		if err != nil {
			log.Error().Err(err).Str("transformer", tr).Msg("Failed to read samples")
			continue
		}
		if len(samples) == 0 {
			continue
		}
		var tdcg float64
		for _, s := range samples {
			tdcg += s.Reading.TDCG()
		}
		first, last := samples[0].ExtractionDate, samples[len(samples)-1].ExtractionDate
		fmt.Printf("%-10s %4d samples  %s .. %s  mean TDCG %.0f ppm\n",
			tr, len(samples), first.Format("2006-01-02"), last.Format("2006-01-02"), tdcg/float64(len(samples)))
	}

	if !*labels {
		return
	}

	mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
	builder := ml.NewDatasetBuilder(store, ml.NewConsensusLabeler(normative.NewRules(), mw), *workers, mw)
	ds, err := builder.Build(context.Background())
	if ds == nil {
		log.Fatal().Err(err).Msg("Failed to label samples")
	}

	summary := ds.Summary()
	fmt.Printf("\nConsensus labels (%d labelled, %d skipped)\n", summary.Examples, summary.Skipped)
	fmt.Println(strings.Repeat("-", 60))
	for _, l := range dga.Labels {
		if n := summary.ClassCounts[l]; n > 0 {
			fmt.Printf("%-3s %-36s %d\n", l, l.Description(), n)
		}
	}
	if err != nil {
		fmt.Printf("\n⚠ %v\n", err)
	}
}
