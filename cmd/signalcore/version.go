package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newthinker/signalcore/internal/strategy/families"
)

// set with -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and detector information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("signalcore %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  commit:   %s\n", GitCommit)
		fmt.Printf("  built:    %s\n", BuildTime)
		fmt.Printf("  families: %d known, %d on by default\n", len(families.Names()), len(families.DefaultEnabled()))
		fmt.Printf("            %s\n", strings.Join(families.DefaultEnabled(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
