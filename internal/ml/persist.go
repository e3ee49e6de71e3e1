package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Save persists the forest as a single JSON artifact. The write goes to a
// temp file first and is renamed over the old artifact, so a concurrent
// reader never sees a half-written model.
func (f *Forest) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace model: %w", err)
	}

	log.Info().Str("path", path).Int("trees", len(f.Trees)).Int("bytes", len(data)).
		Msg("model artifact saved")
	return nil
}

// LoadForest reads a persisted model artifact. A missing file surfaces as
// an os.IsNotExist error so callers can degrade to the rule-based fallback.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model artifact %s contains no trees", path)
	}
	if len(f.Classes) != NumClasses {
		return nil, fmt.Errorf("model artifact %s has %d classes, expected %d", path, len(f.Classes), NumClasses)
	}
	return &f, nil
}
