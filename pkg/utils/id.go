package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates an evaluation run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("run-%s-%s", timestamp, short)
}

// ValidateRunID rejects IDs that cannot be used as a path segment
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if strings.ContainsAny(runID, "/?# ") {
		return fmt.Errorf("run id %q cannot contain '/', '?', '#' or spaces", runID)
	}
	return nil
}
