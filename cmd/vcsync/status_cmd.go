package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/openvcs/vcsync/internal/syncinfo"
	"github.com/openvcs/vcsync/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type pathStatus struct {
	Path       string                   `json:"path"`
	FolderSync *syncinfo.FolderSync     `json:"folder_sync,omitempty"`
	Record     *syncinfo.ResourceSync   `json:"record,omitempty"`
	Members    []*syncinfo.ResourceSync `json:"members,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the sync state of a file or directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(viper.GetString("root"))
		if err != nil {
			return err
		}

		target := application.wc.Root
		if len(args) == 1 {
			if target, err = utils.ResolvePath(args[0]); err != nil {
				return err
			}
		}

		s := application.synchronizer
		status := &pathStatus{Path: target}

		if status.Record, err = s.ResourceSync(target); err != nil {
			return err
		}
		if utils.DirExists(target) {
			if status.FolderSync, err = s.FolderSync(target); err != nil {
				return err
			}
			if status.Members, err = s.Members(target); err != nil {
				return err
			}
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		}

		printStatus(status)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "emit JSON")
}

func printStatus(status *pathStatus) {
	fmt.Println(status.Path)
	if status.FolderSync != nil {
		tag := status.FolderSync.Tag
		if tag == "" {
			tag = "(default branch)"
		}
		fmt.Printf("  bound to %s %s, tag %s\n", status.FolderSync.Root, status.FolderSync.Repository, tag)
	}
	if status.Record != nil {
		fmt.Printf("  revision %s", status.Record.Revision)
		if status.Record.Tag != "" {
			fmt.Printf(" (tag %s)", status.Record.Tag)
		}
		fmt.Println()
	}
	if status.FolderSync == nil && status.Record == nil {
		fmt.Println("  not under version control")
	}
	for _, member := range status.Members {
		kind := "file"
		if member.Directory {
			kind = "dir"
		}
		fmt.Printf("  %-4s %-30s %s\n", kind, member.Name, member.Revision)
	}
}
