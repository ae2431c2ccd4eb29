// cmd/probe/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gatewayprobe/internal/auth"
	"gatewayprobe/internal/credentials"
	"gatewayprobe/internal/gateway"
	"gatewayprobe/internal/scenario"
	"gatewayprobe/pkg/config"
	"gatewayprobe/pkg/logger"
	"gatewayprobe/pkg/middleware"
)

type runFlags struct {
	role    string
	all     bool
	timeout time.Duration
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe an AI gateway's agent-authentication boundary",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
	rootCmd.AddCommand(newRunCmd(os.Stdout))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd(out io.Writer) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [matched-identity|impersonation|unauthenticated]",
		Short: "Run one scenario, or all of them with --all, and print the results as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := scenario.Kinds()
			if !flags.all {
				if len(args) != 1 {
					return fmt.Errorf("scenario required (or --all)")
				}
				k, err := scenario.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []scenario.Kind{k}
			}
			role, err := credentials.ParseRole(flags.role)
			if err != nil {
				return err
			}

			cfg := config.Load()
			log := logger.New(cfg.Env)
			defer log.Sync()

			probe, err := config.LoadProbe(cfg.SettingsFile)
			if err != nil {
				return err
			}
			httpClient := middleware.NewHTTPClient(cfg)
			runner := scenario.NewRunner(
				config.NewStore(probe),
				auth.New(cfg.TokenURL, auth.WithHTTPClient(httpClient), auth.WithFields(cfg.TokenField, cfg.ErrorField)),
				gateway.New(cfg.GatewayURL, gateway.WithHTTPClient(httpClient)),
				scenario.WithLogger(log),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.timeout)
				defer cancel()
			}
			defer func() { _ = middleware.ShutdownTracing(context.Background()) }()

			for _, k := range kinds {
				if _, err := runner.Run(ctx, k, role); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(runner.History().List())
		},
	}
	cmd.Flags().StringVar(&flags.role, "role", "coordinator", "agent role for matched-identity and unauthenticated (coordinator|specialist)")
	cmd.Flags().BoolVar(&flags.all, "all", false, "run every scenario in order")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "overall deadline for the run (0 = none)")
	return cmd
}
