// Package cli is the headless participant client: one-shot meeting
// management plus an interactive session driven from stdin.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var v = config.NewClientViper()

var rootCmd = &cobra.Command{
	Use:   "meet",
	Short: "Join host-gated mesh meetings from the terminal",
	Long: `meet talks to a Meet coordination server. Create a meeting, then join it:
the host is admitted at once, everyone else waits for the host to approve them.
Media flows peer to peer between every pair of participants.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(v.GetString("log_level"), true)
		return nil
	},
}

func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("server", "", "coordination server base URL (default from config)")
	pf.String("identity", "", "your identity, usually an email address")
	pf.String("codec", "", "control channel codec: json or msgpack")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	_ = v.BindPFlag("server", pf.Lookup("server"))
	_ = v.BindPFlag("identity", pf.Lookup("identity"))
	_ = v.BindPFlag("codec", pf.Lookup("codec"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.AddCommand(newCreateCmd(v), newJoinCmd(v))
}

func loadConfig(v *viper.Viper) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(v)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseIdentity(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("identity is required (--identity or MEET_IDENTITY): %w", err)
	}
	cfg.Identity = string(id)
	return cfg, nil
}
