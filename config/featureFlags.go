package config

import (
	"os"
	"strings"
)

func envFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RequireRunLock makes a reconciliation run fail when the Redis lock cannot be obtained.
// Without it the lock is best-effort.
//
// Set via env:
// - RECON_REQUIRE_RUN_LOCK=true
func RequireRunLock() bool {
	return envFlag("RECON_REQUIRE_RUN_LOCK")
}

// PublishRunSummary publishes a summary message to Pub/Sub after each run.
//
// Set via env:
// - RECON_PUBLISH_SUMMARY=true (also needs PUBSUB_TOPIC)
func PublishRunSummary() bool {
	return envFlag("RECON_PUBLISH_SUMMARY")
}

// StampUnmatchedRows writes the processed date on unmatched and unclassified rows.
// Their status cell stays blank so the next run retries them.
//
// Set via env:
// - RECON_STAMP_UNMATCHED=true
func StampUnmatchedRows() bool {
	return envFlag("RECON_STAMP_UNMATCHED")
}
