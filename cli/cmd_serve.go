package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"student-records-go/handlers"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(globals *globalOptions, out io.Writer) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster over HTTP; the roster is saved on shutdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(globals, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.warnSkipped(out)

			if addr == "" {
				addr = rt.cfg.HTTP.Addr
			}
			if rt.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			apiHandler := handlers.NewAPIHandler(rt.store, rt.repo, rt.logger)
			router := handlers.NewRouter(apiHandler)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("starting server", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			var serveErr error
			select {
			case <-ctx.Done():
				rt.logger.Info("shutting down server")
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					serveErr = fmt.Errorf("run server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Warn("server shutdown incomplete", "error", err)
			}

			var saveErr error
			if err := apiHandler.Close(); err != nil {
				saveErr = &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("could not save records: %w", err)}
				fmt.Fprintln(out, "Error: records could not be saved:", err)
			}
			return asExitError(ExitCodeGeneric, errors.Join(serveErr, saveErr))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from http.addr)")
	return cmd
}
