// cmd/merlin/main.go
//
// ROLE: Executable entrypoint.
//
// What lives here
//   • CLI surface (cobra): version flags, config file override, protocol
//     log override.
//   • Process startup: configuration loading, logger setup, server
//     construction, running the dispatch loop on stdio.
//
// What does NOT live here
//   • No command handlers, no transport framing, no session state. The
//     loop itself lives in dispatch.go so it can be driven by tests over
//     in-memory streams.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/MarcWeber/merlin/internal/config"
)

// version is set during the build using ldflags.
var version = "0.1.0"

const protocolVersion = 1

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		versionNum bool
		configPath string
		logPath    string
	)

	cmd := &cobra.Command{
		Use:     "merlin",
		Short:   "Incremental analysis server answering editor queries over stdio",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if versionNum {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			cfg, err := config.LoadFrom(configPath)
			if err != nil {
				return err
			}
			if logPath != "" {
				cfg.Log.File = logPath
			}
			commonlog.Configure(verbosityFor(cfg.Log.Level), nil)

			srv, err := newServer(cfg, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			defer srv.close()
			// Stream exhaustion is the normal shutdown path, exit code 0.
			srv.loop()
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&versionNum, "version-num", false, "print the bare version number and exit")
	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the YAML configuration file")
	cmd.Flags().StringVar(&logPath, "protocol-log", "", "file receiving a duplex copy of the wire protocol")
	return cmd
}

// verbosityFor maps config log levels onto commonlog verbosities.
func verbosityFor(level string) int {
	switch level {
	case "error":
		return 0
	case "warning", "notice":
		return 1
	case "info":
		return 2
	case "debug":
		return 3
	}
	return 1
}
