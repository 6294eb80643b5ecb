// Command relay inspects and exercises a relay configuration: validate the
// file, probe provider health, print effective limits, or run one prompt
// through the fallback chain.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/relay"
	"github.com/adalundhe/relay/core/config"
	"github.com/adalundhe/relay/core/fallback"
	"github.com/adalundhe/relay/core/providers"
)

const healthTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "relay",
		Short:         "Rate-limited, fallback-aware LLM provider relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "relay.yaml", "path to config file")

	root.AddCommand(
		newValidateCmd(&configPath),
		newHealthCmd(&configPath),
		newLimitsCmd(&configPath),
		newAskCmd(&configPath),
	)
	return root
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(*configPath, newLogger())
			if err := manager.Load(); err != nil {
				return err
			}

			snap := manager.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d providers, %d chains\n",
				len(snap.Providers), len(snap.Chains))
			return nil
		},
	}
}

func newHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := relay.New(cmd.Context(), *configPath, newLogger(), relay.Options{})
			if err != nil {
				return err
			}

			failed := 0
			for _, name := range r.Providers.Names() {
				provider, _ := r.Providers.Get(name)
				if err := probe(cmd.Context(), provider); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: UNHEALTHY (%v)\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: healthy\n", name)
			}

			if failed > 0 {
				return fmt.Errorf("%d provider(s) unhealthy", failed)
			}
			return nil
		},
	}
}

func probe(ctx context.Context, provider providers.Provider) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return provider.HealthCheck(ctx)
}

func newLimitsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print effective rate limits per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(*configPath, newLogger())
			if err := manager.Load(); err != nil {
				return err
			}

			for name, pc := range manager.Get().Providers {
				limits := pc.Limits
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s: rpm=%d tpm=%d burst=%.0f refill=%.2f/s concurrent=%d window=%s throttle>%.0f%%\n",
					name,
					limits.RequestsPerMinute,
					limits.TokensPerMinute,
					limits.BurstCapacity,
					limits.RefillRatePerSecond,
					limits.MaxConcurrent,
					limits.Window(),
					limits.AutoThrottleThreshold*100,
				)
			}
			return nil
		},
	}
}

func newAskCmd(configPath *string) *cobra.Command {
	var agentKind string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Run one prompt through the fallback chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := relay.New(cmd.Context(), *configPath, newLogger(), relay.Options{})
			if err != nil {
				return err
			}

			resp, err := r.Execute(cmd.Context(), fallback.Request{
				AgentKind: agentKind,
				Messages: []providers.Message{
					{Role: providers.RoleUser, Content: args[0]},
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s, %d in / %d out]\n",
				resp.Model, resp.TokensIn, resp.TokensOut)
			return nil
		},
	}
	cmd.Flags().StringVarP(&agentKind, "agent", "a", "default", "agent kind selecting the fallback chain")
	return cmd
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
