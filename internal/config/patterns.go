package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/andres10976/certwatch/internal/model"
)

// patternFile mirrors model.MonitorConfig with pointers so an absent key can
// be told apart from an empty list.
type patternFile struct {
	Patterns         *[]string `json:"patterns"`
	ExcludedPatterns *[]string `json:"excluded_patterns"`
}

// LoadPatterns reads the include and exclude lists from path. The file may
// contain comments and trailing commas. Each list falls back to its default
// on its own, and any problem with the file yields the defaults with a
// warning.
func LoadPatterns(path string, logger *slog.Logger) model.MonitorConfig {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := model.DefaultMonitorConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("pattern file not found, using defaults", "path", path)
		} else {
			logger.Warn("pattern file unreadable, using defaults", "path", path, "error", err)
		}
		return cfg
	}

	var pf patternFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &pf); err != nil {
		logger.Warn("pattern file malformed, using defaults", "path", path, "error", err)
		return cfg
	}

	if pf.Patterns != nil {
		cfg.IncludePatterns = *pf.Patterns
	}
	if pf.ExcludedPatterns != nil {
		cfg.ExcludePatterns = *pf.ExcludedPatterns
	}
	logger.Info("patterns loaded", "path", path,
		"include", len(cfg.IncludePatterns), "exclude", len(cfg.ExcludePatterns))
	return cfg
}
