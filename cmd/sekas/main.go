// Command sekas is the node binary: spec §6's CLI surface ("sekas start
// --addr HOST:PORT [--init] [--join ADDR,…] [--data DIR]" plus admin
// subcommands), grounded on cuemby-warren/cmd/warren/main.go's cobra
// command-tree shape (persistent flags bound at the root command,
// cobra.OnInitialize wiring up logging before any subcommand runs).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sekas/sekas/pkg/config"
	"github.com/sekas/sekas/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sekas",
	Short: "Sekas - a sharded, raft-replicated, MVCC key-value store",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cordonCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(uncordonCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(jobsCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// loadNodeConfig reads --config (if set) and layers --addr/--init/--join/
// --data/--cpu-nums/--enable-proxy-service on top, the same
// load-then-override-with-flags order cmd/warren/main.go's cluster init
// command follows for its own --node-id/--bind-addr/--api-addr/--data-dir
// flags.
func loadNodeConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	config.ApplyFlags(cmd, &cfg)
	return cfg, nil
}
