package preflight

import (
	"context"

	"tabcap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks for unconfigured features are skipped rather than failed.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Disk space", cfg.Paths.DataDir),
		CheckTokenFile(cfg.Paths.TokenPath),
	}
	if cfg.Upload.Endpoint != "" {
		results = append(results, CheckUploadEndpoint(ctx, cfg.Upload.Endpoint))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
