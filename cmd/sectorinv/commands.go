package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/sectorinv/internal/auth"
	"github.com/vbonduro/sectorinv/internal/config"
	"github.com/vbonduro/sectorinv/internal/docstore"
	"github.com/vbonduro/sectorinv/internal/domain"
	"github.com/vbonduro/sectorinv/internal/logging"
	"github.com/vbonduro/sectorinv/internal/service"
	"github.com/vbonduro/sectorinv/internal/userapi"
	"github.com/vbonduro/sectorinv/internal/web"
	"github.com/vbonduro/sectorinv/internal/web/templates"
)

// app is what every subcommand needs once config and logging are up.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:   "sectorinv",
		Short: "Sector inventory tracker",
		Long: `sectorinv tracks stock per sector with an audit history and serves the
web interface. Run without a subcommand to start the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.logger, a.cleanup = cfg, logger, cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cleanup != nil {
				a.cleanup()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "YAML config file (env vars still override it)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored inventory document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return a.export(cmd.Context(), w)
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored inventory document with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			return a.importDocument(cmd.Context(), f)
		},
	}

	root.AddCommand(serveCmd, exportCmd, importCmd)
	return root
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		a.logger.Error("failed to open store", "backend", a.cfg.StoreBackend, "error", err)
		return err
	}
	defer closeStore()

	inventory := service.NewInventoryService(docstore.New(kv, a.cfg.DocumentKey, a.logger), a.logger)
	if err := inventory.Load(ctx); err != nil {
		a.logger.Error("failed to load inventory", "error", err)
		return err
	}

	sessions := auth.NewSessions(kv, a.cfg.SessionCookie, a.cfg.SessionSecure, a.logger)
	server := web.NewServer(inventory, sessions, userapi.NewClient(a.cfg.UserAPIURL), templates.FS, a.logger)

	if err := server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("server error", "error", err)
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func (a *app) export(ctx context.Context, w io.Writer) error {
	docs, closeStore, err := a.openDocuments(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	doc, err := docs.Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	a.logger.Info("inventory exported",
		"sectors", len(doc.Sectors),
		"products", len(doc.Products),
		"history", len(doc.History),
	)
	return nil
}

func (a *app) importDocument(ctx context.Context, r io.Reader) error {
	doc := domain.NewDocument()
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	docs, closeStore, err := a.openDocuments(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := docs.Save(ctx, doc); err != nil {
		return err
	}
	a.logger.Info("inventory imported",
		"sectors", len(doc.Sectors),
		"products", len(doc.Products),
		"history", len(doc.History),
	)
	return nil
}

func (a *app) openDocuments(ctx context.Context) (*docstore.Store, func(), error) {
	kv, closeStore, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return docstore.New(kv, a.cfg.DocumentKey, a.logger), closeStore, nil
}
