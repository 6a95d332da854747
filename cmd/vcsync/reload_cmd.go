package main

import (
	"fmt"
	"os"

	"github.com/openvcs/vcsync/internal/sync"
	"github.com/openvcs/vcsync/internal/tree"
	"github.com/openvcs/vcsync/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reloadCmd = &cobra.Command{
	Use:   "reload [dir]",
	Short: "Re-read sync metadata from disk for a subtree",
	Long: "Re-reads the sync metadata of a directory and all its descendants, " +
		"depth first. Use after an external tool changed the working copy.",
	Args: cobra.MaximumNArgs(1),
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

		ignore := tree.NewIgnoreList(application.wc.Root)
		ignore.Load()

		quiet, _ := cmd.Flags().GetBool("quiet")
		var report sync.ProgressFunc
		if !quiet {
			report = func(worked, total int) {
				fmt.Fprintf(os.Stderr, "\rreloading... %3d%%", worked*100/total)
				if worked == total {
					fmt.Fprintln(os.Stderr)
				}
			}
		}

		s := application.synchronizer
		if err := s.Reload(cmd.Context(), tree.NewDiskFolder(target, ignore), report); err != nil {
			return err
		}

		// Reload can evict now-unversioned folders, which marks their
		// parents pending.
		return s.Save()
	},
}

func init() {
	reloadCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
}
