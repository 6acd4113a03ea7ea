// Package main is the entry point of the Dynatrace backup/restore service.
package main

import (
	"os"

	"github.com/warezfr/dynatrace-backup-restore-tool/cli"
	"github.com/warezfr/dynatrace-backup-restore-tool/common"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		common.Logger.Error(err)
		os.Exit(1)
	}
}
