package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hookly/helios/pkg/cli"
	"hookly/helios/pkg/ledger"
)

var costsFlags struct {
	serverURL string
	period    string
	provider  string
	format    string
}

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Query spend from a running Helios instance",
	Long: `Query cost aggregates from the admin API of a running Helios instance.

Examples:
  # Today's spend, all providers
  helios costs

  # This month's spend as JSON
  helios costs --period month --format json

  # One provider's lifetime spend as CSV
  helios costs --provider openai --period all --format csv`,
	RunE: queryCosts,
}

func init() {
	rootCmd.AddCommand(costsCmd)

	costsCmd.Flags().StringVar(&costsFlags.serverURL, "server", "http://127.0.0.1:8090", "admin API base URL")
	costsCmd.Flags().StringVar(&costsFlags.period, "period", "day", "aggregation period: day, month, all")
	costsCmd.Flags().StringVar(&costsFlags.provider, "provider", "", "restrict to one provider")
	costsCmd.Flags().StringVar(&costsFlags.format, "format", "text", "output format: text, json, csv")
}

func queryCosts(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/costs?period=%s", costsFlags.serverURL, costsFlags.period)
	if costsFlags.provider != "" {
		url += "&provider=" + costsFlags.provider
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return cli.NewCommandError("costs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return cli.NewCommandError("costs", fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error))
	}

	if costsFlags.provider != "" {
		var metrics ledger.CostMetrics
		if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
			return cli.NewCommandError("costs", err)
		}
		return renderCosts([]*ledger.CostMetrics{&metrics}, nil)
	}

	var body struct {
		Global    *ledger.CostMetrics   `json:"global"`
		Providers []*ledger.CostMetrics `json:"providers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cli.NewCommandError("costs", err)
	}
	return renderCosts(body.Providers, body.Global)
}

func renderCosts(providers []*ledger.CostMetrics, global *ledger.CostMetrics) error {
	switch cli.OutputFormat(costsFlags.format) {
	case cli.FormatJSON:
		formatter := cli.NewFormatter(cli.FormatJSON)
		if global != nil {
			return formatter.FormatTo(os.Stdout, map[string]interface{}{
				"global":    global,
				"providers": providers,
			})
		}
		return formatter.FormatTo(os.Stdout, providers)

	case cli.FormatCSV:
		formatter := &cli.CSVFormatter{
			Headers: []string{"provider", "period", "total_cost", "generations", "avg_cost", "input_tokens", "output_tokens"},
		}
		rows := make([][]string, 0, len(providers))
		for _, m := range providers {
			rows = append(rows, []string{
				m.ProviderID,
				string(m.Period),
				strconv.FormatFloat(m.TotalCost, 'f', 6, 64),
				strconv.FormatInt(m.Generations, 10),
				strconv.FormatFloat(m.AvgCostPerGeneration, 'f', 6, 64),
				strconv.FormatInt(m.InputTokens, 10),
				strconv.FormatInt(m.OutputTokens, 10),
			})
		}
		return formatter.FormatTo(os.Stdout, rows)

	default:
		if global != nil {
			fmt.Printf("Total (%s): $%.4f over %d generations\n", global.Period, global.TotalCost, global.Generations)
		}
		for _, m := range providers {
			fmt.Printf("  %-20s $%.4f  %d generations  avg $%.4f\n",
				m.ProviderID, m.TotalCost, m.Generations, m.AvgCostPerGeneration)
		}
		return nil
	}
}
