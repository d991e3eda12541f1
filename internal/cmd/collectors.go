package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/itemtally/itemtally/internal/collectors"
	"github.com/itemtally/itemtally/internal/core/engine"
)

var collectorsOutput string

var collectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "List the available collectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseListFormat(collectorsOutput)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return invalidConfig(fmt.Errorf("load config: %w", err))
		}
		return writeCollectors(cmd.OutOrStdout(), format, collectors.All(cfg))
	},
}

func init() {
	collectorsCmd.Flags().StringVar(&collectorsOutput, "output-format", string(listFormatTable), "Output format: table|json")
	rootCmd.AddCommand(collectorsCmd)
}

type collectorInfo struct {
	Flag        string            `json:"flag"`
	Group       string            `json:"group"`
	Description string            `json:"description"`
	Paged       bool              `json:"paged"`
	InAll       bool              `json:"in_all"`
	Intervals   map[string]string `json:"intervals"`
}

func describeCollector(c engine.Collector) collectorInfo {
	intervals := make(map[string]string, len(c.RateLimits))
	for origin, interval := range c.RateLimits {
		intervals[origin] = interval.String()
	}
	return collectorInfo{
		Flag:        c.Flag,
		Group:       c.Group,
		Description: c.Description,
		Paged:       c.NeedsStore,
		InAll:       c.IncludeInAll,
		Intervals:   intervals,
	}
}

func writeCollectors(w io.Writer, format listFormat, registry []engine.Collector) error {
	if format == listFormatJSON {
		infos := make([]collectorInfo, 0, len(registry))
		for _, c := range registry {
			infos = append(infos, describeCollector(c))
		}
		payload, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Flag", "Kind", "Interval", "In --all", "Description"})
	for i, group := range collectors.Groups(registry) {
		if i > 0 {
			t.AppendSeparator()
		}
		t.AppendRow(table.Row{group})
		for _, c := range registry {
			if c.Group != group {
				continue
			}
			kind := "statistic"
			if c.NeedsStore {
				kind = "paged"
			}
			inAll := "yes"
			if !c.IncludeInAll {
				inAll = "no"
			}
			t.AppendRow(table.Row{"  --" + c.Flag, kind, slowestInterval(c.RateLimits), inAll, c.Description})
		}
	}
	t.Render()
	return nil
}

// slowestInterval reports the largest configured spacing of a collector.
func slowestInterval(limits map[string]time.Duration) string {
	if len(limits) == 0 {
		return "-"
	}
	values := make([]time.Duration, 0, len(limits))
	for _, interval := range limits {
		values = append(values, interval)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] > values[j] })
	return values[0].String()
}
