package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a protected session open and report every state change",
		Long: `Mounts the realm's session on a protected view and re-validates it every
LIVENESS_INTERVAL until interrupted. An expired session shows the countdown
and stops the watch when it reaches the login route.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(a.cfg.GetAppName())
			out := cmd.OutOrStdout()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ctrl := a.controller(
				session.WithNotifier(terminalNotifier{w: out}),
				session.WithNavigator(session.NavigatorFunc(func(route string) {
					fmt.Fprintf(out, "-> %s\n", route)
					cancel()
				})),
			)
			defer ctrl.Close()
			unsubscribe := ctrl.Subscribe(func(s session.State) {
				printState(out, string(a.realm), s)
			})
			defer unsubscribe()

			if metricsAddr != "" {
				server := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := listenAndServe(server); err != nil {
						log.Err(err).Msg("Metrics server stopped")
					}
				}()
				defer func() {
					if err := shutdown(server); err != nil {
						log.Err(err).Msg("Metrics server shutdown")
					}
				}()
			}

			ctrl.SetView(true)
			ctrl.Mount(ctx)
			if ctrl.State().Kind == session.Unauthenticated {
				return fmt.Errorf("no %s session stored, run storefront login first", a.realm)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	return cmd
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Metrics listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// terminalNotifier prints the expiry notice and load errors
type terminalNotifier struct {
	w io.Writer
}

func (n terminalNotifier) SessionExpired(realm credentials.Realm, redirectIn time.Duration) {
	fmt.Fprintln(n.w, colour(RedInverse, fmt.Sprintf(" Your %s session has expired. Sign in again. ", realm)))
	fmt.Fprintf(n.w, "Redirecting to login in %s\n", redirectIn.Round(time.Second))
}

func (n terminalNotifier) DataLoadFailed(message string) {
	fmt.Fprintln(n.w, colour(Red, message))
}

// quietNotifier drops notices; one-shot commands print the resulting state instead
type quietNotifier struct{}

func (quietNotifier) SessionExpired(credentials.Realm, time.Duration) {}
func (quietNotifier) DataLoadFailed(string) {}
