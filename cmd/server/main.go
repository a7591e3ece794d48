package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"salesdash/internal/api"
	"salesdash/internal/config"
	"salesdash/internal/dashboard"
	"salesdash/internal/engine"
	"salesdash/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	flags := viper.New()

	cmd := &cobra.Command{
		Use:           "salesdash",
		Short:         "Serve the interactive sales dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			_ = godotenv.Load()

			v, err := config.New(cfgFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			for _, key := range []string{"server.port", "server.debug"} {
				if flags.IsSet(key) {
					v.Set(key, flags.Get(key))
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	cmd.Flags().IntP("port", "p", 8050, "HTTP listen port")
	cmd.Flags().Bool("debug", false, "debug mode with console logging")
	_ = flags.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = flags.BindPFlag("server.debug", cmd.Flags().Lookup("debug"))
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	level, format := cfg.Log.Level, cfg.Log.Format
	if cfg.Server.Debug {
		level, format = "debug", "console"
	}
	if err := logging.Init(level, format); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return err
	}
	defer logging.Sync()
	log := logging.Logger()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load the denormalized table. Nothing is served until it is ready.
	loader, err := newLoader(cfg)
	if err != nil {
		log.Error("loader", zap.Error(err))
		return err
	}
	t0 := time.Now()
	store, err := loader.Load(ctx, engine.Sources{
		Sales:     cfg.Sources.Sales,
		Customers: cfg.Sources.Customers,
		Stores:    cfg.Sources.Stores,
		Products:  cfg.Sources.Products,
	})
	if err != nil {
		var le *engine.LoadError
		if errors.As(err, &le) {
			log.Error("data load failed", zap.String("source", le.Source), zap.Error(le.Err))
		} else {
			log.Error("data load failed", zap.Error(err))
		}
		return err
	}
	log.Info("data ready", zap.Int("rows", store.Len()), zap.Duration("took", time.Since(t0)))

	// 2. Wire charts and routes.
	dash := dashboard.New(store, dashboard.Specs(cfg.Dashboard.TopN))
	h, err := api.NewHandler(dash, cfg.Dashboard.Title)
	if err != nil {
		log.Error("page", zap.Error(err))
		return err
	}
	e, err := api.NewEcho(api.ServerOptions{Debug: cfg.Server.Debug, RateLimit: cfg.Server.RateLimit}, h)
	if err != nil {
		log.Error("server", zap.Error(err))
		return err
	}

	// 3. Serve until interrupted.
	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("server listening", zap.String("addr", addr))
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLoader(cfg *config.Config) (*engine.Loader, error) {
	enc, err := engine.LookupEncoding(cfg.Sources.CSVEncoding)
	if err != nil {
		return nil, err
	}
	c := cfg.Columns
	return engine.NewLoader(
		engine.WithHTTPClient(&http.Client{Timeout: cfg.Sources.Timeout}),
		engine.WithCSVEncoding(enc),
		engine.WithColumns(engine.Columns{
			SaleDate:    c.SaleDate,
			Quantity:    c.Quantity,
			CustomerID:  c.CustomerID,
			StoreID:     c.StoreID,
			SKU:         c.SKU,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			StoreName:   c.StoreName,
			ProductName: c.ProductName,
			Brand:       c.Brand,
			ProductType: c.ProductType,
		}),
	), nil
}
