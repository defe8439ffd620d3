package model

// MonitorConfig holds the include/exclude substring lists used to flag
// certificates of interest.
type MonitorConfig struct {
	IncludePatterns []string `json:"patterns"`
	ExcludePatterns []string `json:"excluded_patterns"`
}

// DefaultMonitorConfig returns the patterns used when no configuration file
// supplies them.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		IncludePatterns: DefaultIncludePatterns(),
		ExcludePatterns: DefaultExcludePatterns(),
	}
}

func DefaultIncludePatterns() []string {
	return []string{".fun", ".xyz", ".club", ".online", ".download"}
}

func DefaultExcludePatterns() []string {
	return []string{"cloudflare.com", "google", "amazon.com"}
}
