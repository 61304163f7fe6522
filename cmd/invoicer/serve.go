package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	invoicehttp "github.com/goliatone/go-invoice/adapters/http"
	"github.com/goliatone/go-invoice/adapters/invoiceapi"
	invoicerouter "github.com/goliatone/go-invoice/adapters/router"
)

const shutdownTimeout = 10 * time.Second

func serveAction(c *cli.Context, rt *runtime) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := invoiceapi.Config{
		Service:  rt.service,
		BasePath: rt.cfg.Server.BasePath,
		Logger:   rt.logger,
	}
	addr := rt.cfg.Server.Addr()
	rt.logger.Infof("serving invoices on http://%s%s (%s)", addr, rt.cfg.Server.BasePath, rt.cfg.Server.Router)

	if rt.cfg.Server.Router == "fiber" {
		return serveFiber(ctx, addr, api)
	}
	return serveMux(ctx, addr, api)
}

func serveMux(ctx context.Context, addr string, api invoiceapi.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           invoicehttp.NewRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveFiber(ctx context.Context, addr string, api invoiceapi.Config) error {
	srv := invoicerouter.NewFiberServer(api, "invoicer")
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
