package preflight

import (
	"fmt"
	"log"
	"os"

	"signalforge/internal/database"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before the server starts
type Checker struct {
	db          *database.DB
	sourcesFile string
}

// NewChecker creates a new preflight checker
func NewChecker(db *database.DB, sourcesFile string) *Checker {
	return &Checker{db: db, sourcesFile: sourcesFile}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
		c.checkDatabaseSchema(),
		c.checkSourcesFile(),
		c.checkAnalysisKey(),
	}

	passed, failed, warnings := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("\n📊 Pre-flight summary: %d passed, %d failed, %d warnings\n", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkDatabaseConnection() CheckResult {
	if err := c.db.Ping(); err != nil {
		return CheckResult{
			Name:    "Database Connection",
			Status:  "fail",
			Message: "Cannot open SQLite store",
			Error:   err,
		}
	}
	return CheckResult{
		Name:    "Database Connection",
		Status:  "pass",
		Message: "SQLite store reachable",
	}
}

func (c *Checker) checkDatabaseSchema() CheckResult {
	requiredTables := []string{
		"harvested_records",
		"harvest_logs",
		"agent_metrics",
	}

	for _, table := range requiredTables {
		var count int
		query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
		err := c.db.QueryRow(query, table).Scan(&count)
		if err != nil || count == 0 {
			return CheckResult{
				Name:    "Database Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(requiredTables)),
	}
}

func (c *Checker) checkSourcesFile() CheckResult {
	if _, err := os.Stat(c.sourcesFile); err != nil {
		return CheckResult{
			Name:    "Sources File",
			Status:  "warning",
			Message: fmt.Sprintf("%s not readable, only manual harvests with built-in defaults will work", c.sourcesFile),
			Error:   err,
		}
	}
	return CheckResult{
		Name:    "Sources File",
		Status:  "pass",
		Message: c.sourcesFile + " readable",
	}
}

func (c *Checker) checkAnalysisKey() CheckResult {
	if os.Getenv("ANALYSIS_API_KEY") == "" {
		return CheckResult{
			Name:    "Analysis API Key",
			Status:  "warning",
			Message: "ANALYSIS_API_KEY not set, harvests will persist without analyzed payloads",
		}
	}
	return CheckResult{
		Name:    "Analysis API Key",
		Status:  "pass",
		Message: "Analysis API key present",
	}
}
