package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hashtagcpt/psychophysics-parrot/internal/codec"
	"github.com/hashtagcpt/psychophysics-parrot/internal/httpapi"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve staircases over gRPC and stored sessions over HTTP",
		Long: `Serve hosts the parrot.StaircaseService gRPC service, which lets a
remote experiment open staircases and record responses, and a read-only
HTTP API over the sessions stored in the database.

Example:
  parrot serve --grpc-addr :50051 --http-addr :8080 --db parrot.db`,
		RunE: a.runServe,
	}
	cmd.Flags().String("grpc-addr", ":50051", "gRPC listen address")
	cmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	cmd.Flags().String("db", "", "path to SQLite database (default store.path)")

	_ = a.v.BindPFlag("server.grpc_addr", cmd.Flags().Lookup("grpc-addr"))
	_ = a.v.BindPFlag("server.http_addr", cmd.Flags().Lookup("http-addr"))
	_ = a.v.BindPFlag("store.path", cmd.Flags().Lookup("db"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	codec.RegisterStaircaseServer(grpcServer, codec.NewService(
		codec.WithServiceStore(st),
		codec.WithServiceLogger(a.logger),
	))

	httpServer := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           httpapi.NewServer(st),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Printf("[RPC] listening on %s", lis.Addr())
	a.logger.Printf("[HTTP] listening on %s", httpServer.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
