package cmd

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/internal/fakeapi"
)

const shutdownTimeout = 5 * time.Second

func newServeFakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Run an in-memory marketplace API for local use",
		Long: `Run an in-memory implementation of the marketplace API, seeded with an
admin, a host, a guest and three listings. Every seeded account uses the
password "password123". Data is lost when the server stops.

Examples:
bnb serve-fake --addr 127.0.0.1:5000
BNB_API_URL=http://127.0.0.1:5000 bnb login --email host@bnb.test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			secret, _ := cmd.Flags().GetString("secret")
			ttl, _ := cmd.Flags().GetDuration("token-ttl")
			empty, _ := cmd.Flags().GetBool("empty")
			logger := cli.GetLogger(cmd)

			opts := []fakeapi.Option{fakeapi.WithLogger(logger), fakeapi.WithTokenTTL(ttl)}
			if secret != "" {
				opts = append(opts, fakeapi.WithSecret(secret))
			}
			fake := fakeapi.New(opts...)
			if !empty {
				if err := fake.Seed(); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, errors.KindNetwork, "failed to listen").WithDetail("addr", addr)
			}
			srv := &http.Server{
				Handler:           fake.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warn("shutdown did not finish cleanly")
				}
			}()

			logger.WithField("addr", ln.Addr().String()).Info("fake marketplace API listening")
			if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, errors.KindNetwork, "server stopped")
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().String("secret", "", "HMAC secret for issued tokens")
	cmd.Flags().Duration("token-ttl", time.Hour, "Lifetime of issued tokens")
	cmd.Flags().Bool("empty", false, "Start without seed data")
	return cmd
}
