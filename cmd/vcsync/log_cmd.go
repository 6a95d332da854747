package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/openvcs/vcsync/internal/journal"
	"github.com/openvcs/vcsync/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recently observed sync-state changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		wc, err := workspace.New(viper.GetString("root"))
		if err != nil {
			return err
		}

		j, err := journal.NewChangeJournal(wc.JournalPath)
		if err != nil {
			return err
		}
		if err := j.Open(); err != nil {
			return err
		}
		defer j.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := j.Recent(limit)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(entries)
		}

		for _, entry := range entries {
			fmt.Printf("%-16s %-14s %s\n", observedAgo(entry.ObservedAt), entry.Kind, entry.Path)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	logCmd.Flags().Bool("json", false, "emit JSON")
}

// observedAgo renders a stored timestamp as a relative age, falling back to
// the raw value when it does not parse.
func observedAgo(observedAt string) string {
	t, err := time.Parse(time.RFC3339Nano, observedAt)
	if err != nil {
		return observedAt
	}
	return humanize.Time(t)
}
