// train generates a synthetic labeled dataset, optionally augments it with
// stored session summaries, fits the random forest classifier, prints an
// evaluation report and writes the model artifact.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/spaxe-dev/Tremor-Pro/internal/ml"
	"github.com/spaxe-dev/Tremor-Pro/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	var (
		nPerClass = flag.Int("n-per-class", 1500, "synthetic samples per class")
		noiseStd  = flag.Float64("noise", 0.05, "gaussian noise std added to band powers")
		trees     = flag.Int("trees", 150, "number of trees in the forest")
		maxDepth  = flag.Int("max-depth", 12, "maximum tree depth")
		seed      = flag.Int64("seed", 42, "random seed for generation and training")
		augment   = flag.Bool("augment", false, "augment with weak-labeled stored sessions")
		dataPath  = flag.String("data", os.Getenv("DATA_PATH"), "session store directory (used with -augment)")
		modelPath = flag.String("model", envOrDefault("MODEL_PATH", "models/tremor_rf.json"), "output model artifact path")
		exportCSV = flag.String("export-csv", "", "also write the training dataset to this CSV path")
		logLevel  = flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	)
	flag.Parse()

	setupLogging(*logLevel)

	log.Info().Int("n_per_class", *nPerClass).Int64("seed", *seed).
		Msg("generating synthetic training data")
	ds := ml.GenerateSynthetic(*nPerClass, *noiseStd, *seed)

	if *augment {
		added := augmentFromStore(&ds, *dataPath)
		log.Info().Int("added", added).Msg("augmented dataset with weak-labeled session samples")
	}

	log.Info().Int("samples", ds.Len()).Msg("dataset ready")

	if *exportCSV != "" {
		if err := ds.ExportCSV(*exportCSV); err != nil {
			log.Fatal().Err(err).Str("path", *exportCSV).Msg("CSV export failed")
		}
		log.Info().Str("path", *exportCSV).Msg("dataset exported")
	}

	cfg := ml.DefaultTrainConfig()
	cfg.Forest.NumTrees = *trees
	cfg.Forest.MaxDepth = *maxDepth
	cfg.Forest.Seed = *seed
	cfg.Seed = *seed

	forest, report, err := ml.Train(ds, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	report.Print(os.Stdout)

	if err := forest.Save(*modelPath); err != nil {
		log.Fatal().Err(err).Str("path", *modelPath).Msg("failed to save model")
	}
	log.Info().Str("path", *modelPath).Msg("model artifact written")
}

// augmentFromStore pulls stored session summaries and folds them into the
// dataset as weak-labeled samples. Store failures are non-fatal: the
// synthetic dataset alone is sufficient to train on.
func augmentFromStore(ds *ml.Dataset, dataPath string) int {
	if dataPath == "" {
		log.Warn().Msg("-augment set but no data path, skipping augmentation")
		return 0
	}
	store, err := storage.New(dataPath)
	if err != nil {
		log.Warn().Err(err).Str("data_path", dataPath).
			Msg("cannot open session store, skipping augmentation")
		return 0
	}
	defer store.Close()

	augmented, added := ml.AugmentFromSessions(*ds, store)
	*ds = augmented
	return added
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
