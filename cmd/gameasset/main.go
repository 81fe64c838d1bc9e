//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Command gameasset generates marketing game assets from brand documents.
//
//	gameasset serve
//	gameasset generate --id evt-1 --file brand_book.pdf
//	gameasset render obstacle --prompt "crystal spires"
//	gameasset brandbook --file brand_book.pdf --render
//	gameasset provenance evt-1
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-gameasset-go/config"
	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/orchestration"
	"trpc.group/trpc-go/trpc-gameasset-go/server"
	"trpc.group/trpc-go/trpc-gameasset-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-gameasset-go/telemetry/trace"
)

const shutdownTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	cfg        *config.Config
	cleanups   []func() error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	root := &cobra.Command{
		Use:           "gameasset",
		Short:         "gameasset generates game assets from brand documents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return ro.init(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return ro.shutdown()
		},
	}
	root.PersistentFlags().StringVarP(&ro.configPath, "config", "c", "",
		"config file (default ./gameasset.yaml)")

	root.AddCommand(
		newServeCmd(ro),
		newGenerateCmd(ro),
		newRenderCmd(ro),
		newBrandbookCmd(ro),
		newProvenanceCmd(ro),
	)
	return root
}

// init loads the configuration and starts logging and telemetry.
func (ro *rootOptions) init(ctx context.Context) error {
	cfg, err := config.Load(ro.configPath)
	if err != nil {
		return err
	}
	ro.cfg = cfg
	log.Setup(cfg.Log.Level, cfg.Log.Format)
	if !cfg.Telemetry.Enabled {
		return nil
	}

	traceOpts := []trace.Option{
		trace.WithProtocol(cfg.Telemetry.Protocol),
		trace.WithSampleRatio(cfg.Telemetry.SampleRatio),
	}
	if cfg.Telemetry.Endpoint != "" {
		traceOpts = append(traceOpts, trace.WithEndpoint(cfg.Telemetry.Endpoint))
	}
	cleanTrace, err := trace.Start(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	ro.cleanups = append(ro.cleanups, cleanTrace)

	metricOpts := []metric.Option{metric.WithProtocol(cfg.Telemetry.Protocol)}
	if cfg.Telemetry.MetricsEndpoint != "" {
		metricOpts = append(metricOpts, metric.WithEndpoint(cfg.Telemetry.MetricsEndpoint))
	}
	cleanMetric, err := metric.Start(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	ro.cleanups = append(ro.cleanups, cleanMetric)
	return nil
}

func (ro *rootOptions) shutdown() error {
	var errs []error
	for _, clean := range ro.cleanups {
		if err := clean(); err != nil {
			errs = append(errs, err)
		}
	}
	ro.cleanups = nil
	return errors.Join(errs...)
}

func newServeCmd(ro *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, ro.cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []server.Option{
				server.WithMaxMemory(ro.cfg.Server.MaxUploadMB << 20),
				server.WithAllowedOrigins(ro.cfg.Server.AllowedOrigins...),
			}
			if a.ledger != nil {
				opts = append(opts, server.WithLedger(a.ledger))
			}
			if a.renderer != nil {
				opts = append(opts, server.WithAssetRenderer(a.renderer))
			}
			if addr == "" {
				addr = ro.cfg.Server.Address
			}
			srv := &http.Server{Addr: addr, Handler: server.New(a.core, opts...).Handler()}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("listening on %s", addr)
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func newGenerateCmd(ro *rootOptions) *cobra.Command {
	var (
		req   orchestration.Request
		files []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a game guide, a character prompt and a character image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := document.ReadFiles(files...)
			if err != nil {
				return err
			}
			req.Documents = docs
			a, err := newApp(cmd.Context(), ro.cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.core.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "event id keying the provenance record")
	cmd.Flags().StringVar(&req.Brief, "brief", "", "free text appended to the guide instruction")
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "brand document (repeatable)")
	return cmd
}

func newRenderCmd(ro *rootOptions) *cobra.Command {
	var (
		promptText string
		imagePath  string
	)
	cmd := &cobra.Command{
		Use:   "render <class>",
		Short: "Render an asset class through the render queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), ro.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.renderer == nil {
				return errNoRenderer
			}
			if imagePath == "" {
				asset, err := a.renderer.Generate(cmd.Context(), args[0], promptText)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), asset)
			}
			src, err := os.ReadFile(imagePath)
			if err != nil {
				return err
			}
			asset, err := a.renderer.GenerateFromImage(cmd.Context(), args[0], promptText, src)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), asset)
		},
	}
	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "positive prompt")
	cmd.Flags().StringVar(&imagePath, "image", "", "source image for image-to-image templates")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newBrandbookCmd(ro *rootOptions) *cobra.Command {
	var (
		files    []string
		doRender bool
	)
	cmd := &cobra.Command{
		Use:   "brandbook",
		Short: "Derive character, obstacle and background prompts from a brand book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := document.ReadFiles(files...)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), ro.cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			prompts, err := a.core.Brandbook(cmd.Context(), docs)
			if err != nil {
				return err
			}
			if !doRender {
				return printJSON(cmd.OutOrStdout(), prompts)
			}
			assets, err := a.core.RenderAssets(cmd.Context(), prompts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Prompts orchestration.AssetPrompts    `json:"prompts"`
				Assets  *orchestration.RenderedAssets `json:"assets"`
			}{prompts, assets})
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "brand book document (repeatable)")
	cmd.Flags().BoolVar(&doRender, "render", false, "render the prompts through the render queue")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newProvenanceCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <key>",
		Short: "Show the provenance record of an event id or image locator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), ro.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.ledger == nil {
				return errors.New("provenance ledger is disabled")
			}
			rec, err := a.ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no provenance record for %q", args[0])
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
