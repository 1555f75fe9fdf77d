package resilience

import (
	"github.com/sells-group/geoattr/internal/config"
)

// FromRefreshConfig builds the retry policy for dataset downloads.
func FromRefreshConfig(cfg config.RefreshConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	return rc
}
