package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/credentials/boltstore"
	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/jrsteele09/go-storefront-gateway/internal/config"
	"github.com/jrsteele09/go-storefront-gateway/internal/logging"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
)

// app holds what every subcommand shares once the root command has run
type app struct {
	cfg      config.Config
	realm    credentials.Realm
	store    *boltstore.Store
	client   *gateway.Client
	registry *prometheus.Registry
}

// newRootCmd wires the subcommands to a. The caller closes a after execution.
func newRootCmd(a *app) *cobra.Command {
	var (
		envFiles  []string
		realmFlag string
		baseURL   string
	)

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront API client with persistent user and admin sessions",
		Long: `Signs in to the storefront backend, keeps the user and admin tokens in a local
credential database and issues authenticated requests, refreshing tokens when
the backend rejects them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())

			realm, err := credentials.ParseRealm(realmFlag)
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.GetAPIBaseURL()
			}
			return a.open(cfg, realm, baseURL)
		},
	}

	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.PersistentFlags().StringVar(&realmFlag, "realm", string(credentials.User), "credential realm: user or admin")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend API root (default $API_BASE_URL)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRequestCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) open(cfg config.Config, realm credentials.Realm, baseURL string) error {
	if err := os.MkdirAll(cfg.GetDataFolder(), 0o700); err != nil {
		return fmt.Errorf("creating data folder: %w", err)
	}
	store, err := boltstore.Open(
		cfg.GetCredentialsDBPath(),
		&bbolt.Options{Timeout: 2 * time.Second},
		boltstore.WithPassphrase(cfg.GetCredentialsKey()),
	)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	a.cfg = cfg
	a.realm = realm
	a.store = store
	a.registry = prometheus.NewRegistry()
	a.client = gateway.New(baseURL, store,
		gateway.WithTimeout(cfg.GetRequestTimeout()),
		gateway.WithMetrics(a.registry),
	)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// controller builds the session controller for the selected realm
func (a *app) controller(opts ...session.Option) *session.Controller {
	opts = append([]session.Option{
		session.WithRealm(a.realm),
		session.WithLivenessInterval(a.cfg.GetLivenessInterval()),
		session.WithRedirectDelay(a.cfg.GetExpiryRedirectDelay()),
	}, opts...)
	return session.New(a.client, a.store, opts...)
}
