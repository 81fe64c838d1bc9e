//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
	cosstore "trpc.group/trpc-go/trpc-gameasset-go/artifact/cos"
	"trpc.group/trpc-go/trpc-gameasset-go/artifact/inmemory"
	s3store "trpc.group/trpc-go/trpc-gameasset-go/artifact/s3"
	"trpc.group/trpc-go/trpc-gameasset-go/config"
	"trpc.group/trpc-go/trpc-gameasset-go/imagegen"
	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
	ledgerdynamo "trpc.group/trpc-go/trpc-gameasset-go/ledger/dynamodb"
	ledgermem "trpc.group/trpc-go/trpc-gameasset-go/ledger/inmemory"
	ledgerredis "trpc.group/trpc-go/trpc-gameasset-go/ledger/redis"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/model/bedrock"
	"trpc.group/trpc-go/trpc-gameasset-go/model/gemini"
	"trpc.group/trpc-go/trpc-gameasset-go/model/openai"
	"trpc.group/trpc-go/trpc-gameasset-go/orchestration"
	"trpc.group/trpc-go/trpc-gameasset-go/prompt"
	"trpc.group/trpc-go/trpc-gameasset-go/render"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
	istorage "trpc.group/trpc-go/trpc-gameasset-go/storage/redis"
)

// errNoRenderer is returned by commands that need the render queue when
// render.address is not configured.
var errNoRenderer = errors.New("render.address is not configured")

// app holds the collaborators built from the configuration.
type app struct {
	cfg       *config.Config
	artifacts *artifact.Service
	ledger    ledger.Service
	renderer  *render.Generator
	core      *orchestration.Core
	closers   []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp wires every component. The text model is only built when needText
// is set, so commands such as provenance do not need model credentials.
func newApp(ctx context.Context, cfg *config.Config, needText bool) (*app, error) {
	a := &app{cfg: cfg}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.artifacts = artifact.NewService(store, artifact.WithMaxConflicts(cfg.Storage.MaxConflicts))

	if a.ledger, err = a.newLedger(ctx); err != nil {
		return nil, err
	}
	if cfg.Render.Address != "" {
		if a.renderer, err = newRenderGenerator(cfg, store, a.artifacts); err != nil {
			a.Close()
			return nil, err
		}
	}
	if !needText {
		return a, nil
	}

	text, err := newTextModel(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	images, err := a.newImageGenerator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := []orchestration.Option{}
	if a.ledger != nil {
		opts = append(opts, orchestration.WithLedger(a.ledger))
	}
	if a.renderer != nil {
		opts = append(opts, orchestration.WithRenderer(a.renderer))
	}
	if cfg.PromptsFile != "" {
		prompts := prompt.NewStore()
		if err := prompts.LoadFile(cfg.PromptsFile); err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, orchestration.WithPrompts(prompts))
	}
	a.core = orchestration.NewCore(text, images, a.artifacts, opts...)
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case config.StorageS3:
		opts := []s3store.Option{s3store.WithRegion(cfg.Region)}
		if sc.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(sc.Endpoint))
		}
		return s3store.NewStore(ctx, sc.Bucket, opts...)
	case config.StorageCOS:
		var opts []cosstore.Option
		if sc.SecretID != "" {
			opts = append(opts, cosstore.WithSecretID(sc.SecretID))
		}
		if sc.SecretKey != "" {
			opts = append(opts, cosstore.WithSecretKey(sc.SecretKey))
		}
		return cosstore.NewStore(sc.BucketURL, opts...)
	case config.StorageMemory:
		var opts []inmemory.Option
		if sc.URIPrefix != "" {
			opts = append(opts, inmemory.WithURIPrefix(sc.URIPrefix))
		}
		return inmemory.NewStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

func (a *app) newLedger(ctx context.Context) (ledger.Service, error) {
	cfg := a.cfg
	lc := cfg.Ledger
	switch lc.Backend {
	case config.LedgerDynamoDB:
		return ledgerdynamo.NewService(ctx, lc.Table,
			ledgerdynamo.WithRegion(cfg.Region),
			ledgerdynamo.WithKeyAttribute(lc.KeyAttribute),
			ledgerdynamo.WithConsistentRead(lc.ConsistentRead),
		)
	case config.LedgerRedis:
		for name, url := range cfg.Redis.Instances {
			istorage.RegisterRedisInstance(name, istorage.WithClientBuilderURL(url))
		}
		svc, err := ledgerredis.NewService(
			ledgerredis.WithRedisInstance(lc.Redis),
			ledgerredis.WithKeyPrefix(lc.KeyPrefix),
			ledgerredis.WithExpiration(lc.Expiration),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, svc.Close)
		return svc, nil
	case config.LedgerMemory:
		return ledgermem.NewService(), nil
	case config.LedgerNone:
		log.Warnf("provenance ledger disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", lc.Backend)
	}
}

func newRenderGenerator(cfg *config.Config, store artifact.Store, artifacts *artifact.Service) (*render.Generator, error) {
	rc := cfg.Render
	clientOpts := []render.Option{render.WithTimeout(rc.Timeout)}
	if rc.ClientID != "" {
		clientOpts = append(clientOpts, render.WithClientID(rc.ClientID))
	}
	client, err := render.NewClient(rc.Address, clientOpts...)
	if err != nil {
		return nil, err
	}
	manifest, err := rc.LoadManifest()
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("render templates: %w", err)
	}
	var genOpts []render.GeneratorOption
	for class, prefix := range rc.Prefixes {
		genOpts = append(genOpts, render.WithPrefix(class, prefix))
	}
	if rc.TileRows > 0 && rc.TileCols > 0 {
		tiler := artifact.NewTiler(store, cfg.Storage.TilePrefix,
			artifact.WithTileParallelism(cfg.Storage.TileWorkers))
		genOpts = append(genOpts, render.WithBackgroundTiles(tiler, rc.TileRows, rc.TileCols))
	}
	log.Infof("render queue %s with templates %v", rc.Address, manifest.Classes())
	return render.NewGenerator(client, manifest, artifacts, genOpts...), nil
}

func newTextModel(ctx context.Context, cfg *config.Config) (model.TextModel, error) {
	tc := cfg.Text
	switch tc.Provider {
	case config.ProviderBedrock:
		return bedrock.NewTextModel(ctx, tc.Model,
			bedrock.WithRegion(cfg.Region),
			bedrock.WithEndpoint(tc.BaseURL),
			bedrock.WithRetryPolicy(cfg.Retry.Policy(retry.OnPredicate(bedrock.IsThrottling))),
		)
	case config.ProviderOpenAI:
		return openai.NewTextModel(tc.Model,
			openai.WithAPIKey(tc.APIKey),
			openai.WithBaseURL(tc.BaseURL),
			openai.WithRetryPolicy(cfg.Retry.Policy(retry.OnPredicate(openai.IsThrottling))),
		), nil
	case config.ProviderGemini:
		return gemini.NewTextModel(ctx, tc.Model,
			gemini.WithAPIKey(tc.APIKey),
			gemini.WithBaseURL(tc.BaseURL),
			gemini.WithRetryPolicy(cfg.Retry.Policy(retry.OnPredicate(gemini.IsThrottling))),
		)
	default:
		return nil, fmt.Errorf("unknown text provider %q", tc.Provider)
	}
}

func (a *app) newImageGenerator(ctx context.Context) (orchestration.ImageGenerator, error) {
	ic := a.cfg.Image
	if ic.Backend == config.ImageBackendRender {
		if a.renderer == nil {
			return nil, errNoRenderer
		}
		return a.renderer.ForClass(render.ClassCharacter), nil
	}

	var m model.ImageModel
	switch ic.Provider {
	case config.ProviderBedrock:
		bm, err := bedrock.NewImageModel(ctx, ic.Model,
			bedrock.WithRegion(a.cfg.Region),
			bedrock.WithEndpoint(ic.BaseURL),
			bedrock.WithRetryPolicy(a.cfg.Retry.Policy(retry.OnPredicate(bedrock.IsThrottling))),
		)
		if err != nil {
			return nil, err
		}
		m = bm
	case config.ProviderOpenAI:
		m = openai.NewImageModel(ic.Model,
			openai.WithAPIKey(ic.APIKey),
			openai.WithBaseURL(ic.BaseURL),
			openai.WithRetryPolicy(a.cfg.Retry.Policy(retry.OnPredicate(openai.IsThrottling))),
		)
	default:
		return nil, fmt.Errorf("unknown image provider %q", ic.Provider)
	}
	return imagegen.New(m, a.artifacts,
		imagegen.WithPrefix(ic.Prefix),
		imagegen.WithSize(ic.Width, ic.Height),
	), nil
}
