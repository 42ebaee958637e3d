package config

import (
	"fmt"
	"time"
)

// parseInterval parses interval notation (e.g., "30s", "2m", "3h", "7d") into time.Duration.
// Go duration strings such as "1m30s" are accepted too.
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	valueStr := interval[:len(interval)-1]

	if unit != 'd' {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return 0, fmt.Errorf("invalid interval value: %s", interval)
		}
		if d <= 0 {
			return 0, fmt.Errorf("interval value must be positive: %s", interval)
		}
		return d, nil
	}

	// Parse the numeric value
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid interval value: %s", interval)
	}

	if value <= 0 {
		return 0, fmt.Errorf("interval value must be positive: %s", interval)
	}
	return time.Duration(value) * 24 * time.Hour, nil
}
