package utils

import (
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"
)

// GetOptimalWorkerCount determines how many pages are scraped in parallel, based on config and
// system resources. It never returns more workers than there are pages.
func GetOptimalWorkerCount(configValue string, pages int, logger *zap.Logger) int {
	return capWorkers(workerCount(configValue, logger), pages)
}

func workerCount(configValue string, logger *zap.Logger) int {
	// 1. Check for manual override
	if manualWorkers, err := strconv.Atoi(configValue); err == nil && manualWorkers > 0 {
		logger.Info("using manually configured number of workers", zap.Int("workers", manualWorkers))
		return manualWorkers
	}

	// 2. If set to "auto" or invalid, calculate automatically
	if configValue != "auto" && configValue != "" {
		logger.Warn("invalid workers value, defaulting to auto", zap.String("workers", configValue))
	}

	// Logical cores: scraping is mostly I/O bound.
	cpuCores, err := cpu.Counts(true)
	if err != nil {
		logger.Warn("could not detect CPU cores, falling back to default", zap.Int("workers", 2), zap.Error(err))
		return 2
	}

	// Half of the cores, so each browser instance keeps some headroom.
	optimalCount := cpuCores / 2
	if optimalCount < 1 {
		optimalCount = 1
	}
	if optimalCount > 16 {
		optimalCount = 16
	}

	logger.Info("automatically sized worker pool", zap.Int("cores", cpuCores), zap.Int("workers", optimalCount))
	return optimalCount
}

func capWorkers(workers, pages int) int {
	if pages > 0 && workers > pages {
		return pages
	}
	if workers < 1 {
		return 1
	}
	return workers
}
