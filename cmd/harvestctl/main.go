package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// harvestctl is the operator CLI for a running SignalForge server. Every
// command is a thin HTTP call against the REST gateway.

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "harvestctl",
	Short: "Operate a SignalForge server",
	Long: `harvestctl drives a running SignalForge server over its REST API.

Available commands:
  harvest - Trigger a harvest for one source type or all of them
  data    - Fetch persisted harvested records
  stats   - Show per-harvester run statistics
  status  - Show training state and system health
  train   - Trigger a holistic training run
  cleanup - Delete expired records and stale logs`,
}

var harvestType string
var harvestForce bool

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Trigger a harvest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postJSON("/harvest", map[string]any{
			"type":  harvestType,
			"force": harvestForce,
		}, 15*time.Minute)
	},
}

var dataLimit int
var dataMinScore float64
var dataMaxAgeHours int

var dataCmd = &cobra.Command{
	Use:   "data <sourceType>",
	Short: "Fetch persisted harvested records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/data/%s?limit=%d", args[0], dataLimit)
		if dataMinScore > 0 {
			path += fmt.Sprintf("&min_score=%g", dataMinScore)
		}
		if dataMaxAgeHours > 0 {
			path += fmt.Sprintf("&max_age_hours=%d", dataMaxAgeHours)
		}
		return getJSON(path)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-harvester run statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/stats")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show training state and system health",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/training/status")
	},
}

var trainForceRefresh bool
var trainProduction bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Trigger a holistic training run",
	Long: `Trigger a holistic training run and wait for it to finish.

The server runs the full pipeline synchronously (harvest, validate, train,
optional production run, monitor, cleanup), so this can take a while.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return postJSON("/train", map[string]any{
			"forceRefresh":  trainForceRefresh,
			"productionRun": trainProduction,
		}, time.Hour)
	},
}

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired records and stale logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{}
		if cleanupDays > 0 {
			body["days"] = cleanupDays
		}
		return postJSON("/cleanup", body, 5*time.Minute)
	},
}

func getJSON(path string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func postJSON(path string, body map[string]any, timeout time.Duration) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// printResponse pretty-prints the server's JSON response and maps non-2xx
// statuses to a non-zero exit.
func printResponse(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("SIGNALFORGE_URL", "http://localhost:3001"), "SignalForge server base URL")

	harvestCmd.Flags().StringVar(&harvestType, "type", "all", "source type to harvest (trend, audio, screenplay, creator, distribution, sound, all)")
	harvestCmd.Flags().BoolVar(&harvestForce, "force", false, "bypass the freshness gate")

	dataCmd.Flags().IntVar(&dataLimit, "limit", 100, "maximum records to return")
	dataCmd.Flags().Float64Var(&dataMinScore, "min-score", 0, "minimum quality score")
	dataCmd.Flags().IntVar(&dataMaxAgeHours, "max-age-hours", 0, "only records newer than this many hours")

	trainCmd.Flags().BoolVar(&trainForceRefresh, "force-refresh", false, "re-harvest even when cached data is fresh")
	trainCmd.Flags().BoolVar(&trainProduction, "production", false, "request a production pipeline run after training")

	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "delete records older than this many days (0 = server default)")

	rootCmd.AddCommand(harvestCmd, dataCmd, statsCmd, statusCmd, trainCmd, cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
