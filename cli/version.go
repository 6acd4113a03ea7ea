package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warezfr/dynatrace-backup-restore-tool/version"
)

func init() {
	RootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "print full build info as JSON")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version and build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		info := version.GetBuildInfo()
		if asJSON {
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		fmt.Printf("dtbr %s (%s, %s)\n", info.MainVersion, info.MainModule, info.GoVersion)
		return nil
	},
}
