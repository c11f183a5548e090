package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martinemde/chatagent/agentloop"
	"github.com/martinemde/chatagent/chatapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := chatapi.NewServer(c.cfg.ListenAddress, a.agent, a.catalog,
				chatapi.WithLogger(log.Logger),
				chatapi.WithRequestRecorder(a.httpMetrics),
				chatapi.WithMetrics(a.registry),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "shutdown")
			}
			return <-errc
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :8000)")
	return cmd
}

func newAskCommand(c *cli) *cobra.Command {
	var (
		model       string
		temperature float64
		system      string
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the agent one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var messages []agentloop.ChatMessage
			if system != "" {
				messages = append(messages, agentloop.ChatMessage{Role: "system", Content: system})
			}
			messages = append(messages, agentloop.ChatMessage{Role: "user", Content: strings.Join(args, " ")})

			if model == "" {
				model = a.catalog.Default()
			}
			if _, ok := a.catalog.Lookup(model); !ok {
				return errors.Errorf("unknown model %q; run `chatagent models` for the list", model)
			}
			var temp *float64
			if cmd.Flags().Changed("temperature") {
				temp = &temperature
			}

			reply, err := a.agent.Run(cmd.Context(), messages, model, temp)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return err
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model display name (default from config)")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().StringVar(&system, "system", "", "extra system message placed before the prompt")
	return cmd
}

func newModelsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models callers can choose from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := c.cfg.Catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range catalog.Models() {
				marker := " "
				if m.Name == catalog.Default() {
					marker = "*"
				}
				if _, err := fmt.Fprintf(out, "%s %-20s %-6s %s\n", marker, m.Name, m.Provider, m.ID); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
