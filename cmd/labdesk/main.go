package main

import (
	"fmt"
	"os"

	"github.com/dyluth/labdesk/cmd/labdesk/commands"
	"github.com/dyluth/labdesk/internal/printer"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		if !printer.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
