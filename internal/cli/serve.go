package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tutu-network/peernet/internal/api"
	"github.com/tutu-network/peernet/internal/daemon"
	"github.com/tutu-network/peernet/internal/logging"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to accept peers on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to accept peers on (overrides config)")
	serveCmd.Flags().StringArrayVar(&serveSeeds, "seed", nil, "Seed address host:port, repeatable (replaces configured seeds)")
	serveCmd.Flags().IntVar(&serveAPIPort, "api-port", 0, "Status API port (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost     string
	servePort     int
	serveSeeds    []string
	serveAPIPort  int
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the peernet node",
	Long:  `Start the node: listen for inbound peers, dial the seeds, and serve the status API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.Node.Host = serveHost
	}
	if servePort > 0 {
		cfg.Node.Port = servePort
	}
	if len(serveSeeds) > 0 {
		cfg.Seeds.Addrs = serveSeeds
	}
	if serveAPIPort > 0 {
		cfg.API.Port = serveAPIPort
	}
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return err
	}
	api.Version = rootCmd.Version

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	return d.Serve(context.Background())
}
