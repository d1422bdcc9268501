package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/storage"
)

// span is an inclusive ppm range.
type span struct{ lo, hi float64 }

// profile is the typical gas signature of one fault type.
type profile struct {
	name  string
	gases [dga.NumGases]span
}

var (
	atmO2 = span{10000, 25000}
	atmN2 = span{40000, 60000}
)

// Order: h2, ch4, c2h6, c2h4, c2h2, co, co2, o2, n2.
var profiles = []profile{
	{"normal", [dga.NumGases]span{{5, 50}, {2, 30}, {2, 30}, {2, 20}, {0, 0.5}, {100, 400}, {1000, 3000}, atmO2, atmN2}},
	{"partial discharge", [dga.NumGases]span{{500, 2000}, {20, 80}, {5, 20}, {1, 5}, {0, 0.5}, {100, 300}, {1000, 2500}, atmO2, atmN2}},
	{"low energy discharge", [dga.NumGases]span{{100, 400}, {10, 40}, {2, 10}, {20, 60}, {50, 200}, {100, 400}, {1000, 3000}, atmO2, atmN2}},
	{"high energy discharge", [dga.NumGases]span{{300, 900}, {60, 200}, {10, 40}, {150, 400}, {150, 400}, {200, 600}, {1500, 3500}, atmO2, atmN2}},
	{"thermal < 300 C", [dga.NumGases]span{{20, 80}, {80, 200}, {60, 150}, {10, 40}, {0, 0.5}, {150, 400}, {1500, 3500}, atmO2, atmN2}},
	{"thermal 300-700 C", [dga.NumGases]span{{40, 150}, {150, 400}, {40, 120}, {150, 400}, {0, 2}, {150, 450}, {1500, 4000}, atmO2, atmN2}},
	{"thermal > 700 C", [dga.NumGases]span{{100, 300}, {200, 500}, {40, 100}, {500, 1200}, {3, 15}, {200, 500}, {2000, 4500}, atmO2, atmN2}},
	{"discharge and thermal", [dga.NumGases]span{{150, 400}, {100, 300}, {30, 80}, {150, 400}, {20, 80}, {200, 500}, {1500, 4000}, atmO2, atmN2}},
	{"overheating", [dga.NumGases]span{{10, 60}, {5, 40}, {5, 30}, {5, 25}, {0, 0.5}, {800, 2000}, {8000, 15000}, atmO2, atmN2}},
}

func main() {
	var (
		dataPath     = flag.String("data", "data", "Data directory path")
		perProfile   = flag.Int("count", 20, "Samples to generate per fault profile")
		transformers = flag.Int("transformers", 5, "Number of transformers to spread samples over")
		seed         = flag.Int64("seed", 42, "Random seed")
		csvPath      = flag.String("csv", "", "Also export all stored samples to this CSV file")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Generating synthetic DGA samples...\n")
	fmt.Printf("  Profiles: %d\n", len(profiles))
	fmt.Printf("  Per profile: %d\n", *perProfile)
	fmt.Printf("  Data Path: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(*seed))
	samples := generateSamples(rng, *perProfile, *transformers, time.Now())
	if err := store.StoreSamples(samples); err != nil {
		log.Fatal().Err(err).Msg("Failed to store samples")
	}
	fmt.Printf("✓ Stored %d samples\n", len(samples))

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CSV")
		}
		n, err := store.Export(context.Background(), f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export samples")
		}
		fmt.Printf("✓ Exported %d samples to %s\n", n, *csvPath)
	}
}

func generateSamples(rng *rand.Rand, perProfile, transformers int, now time.Time) []dga.Sample {
	if transformers < 1 {
		transformers = 1
	}
	start := now.AddDate(-5, 0, 0)
	stamp := now.Format("20060102150405")

	samples := make([]dga.Sample, 0, perProfile*len(profiles))
	for p, prof := range profiles {
		for i := 0; i < perProfile; i++ {
			values := make([]float64, dga.NumGases)
			for g, s := range prof.gases {
				values[g] = s.lo + rng.Float64()*(s.hi-s.lo)
			}
			reading, _ := dga.ReadingFromFeatures(values)

			// Offset by sample index so keys stay unique per transformer.
			days := rng.Intn(5*365 - 1)
			date := start.AddDate(0, 0, days).Add(time.Duration(p*perProfile+i) * time.Second)
			samples = append(samples, dga.Sample{
				Code:           fmt.Sprintf("GEN-%s-%05d", stamp, p*perProfile+i),
				TransformerID:  fmt.Sprintf("TR-%02d", rng.Intn(transformers)+1),
				ExtractionDate: date,
				Reading:        reading,
			})
		}
	}
	return samples
}
