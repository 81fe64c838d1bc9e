//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the asset pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/orchestration"
	"trpc.group/trpc-go/trpc-gameasset-go/render"
)

// HealthMessage is returned by GET /.
const HealthMessage = "AI Avatar service is running"

const (
	defaultMaxMemory = 32 << 20

	fieldEventID = "event_id"
	fieldFiles   = "files"
)

// Route paths.
const (
	PathHealth         = "/"
	PathRecommendation = "/api/v1/poc/recommendation"
	// PathRecommendationLegacy keeps the misspelled route older clients call.
	PathRecommendationLegacy = "/api/v1/poc/recommedation"
	PathProvenance           = "/api/v1/poc/provenance/{key}"
	PathAssets               = "/api/v1/poc/assets/{class}"
)

// Pipeline runs a recommendation request.
type Pipeline interface {
	Run(ctx context.Context, req orchestration.Request) (orchestration.Result, error)
}

// Server routes REST requests to the pipeline.
type Server struct {
	pipeline  Pipeline
	ledger    ledger.Service
	renderer  orchestration.AssetRenderer
	router    *mux.Router
	maxMemory int64
	origins   []string
}

// Option configures the Server instance.
type Option func(*Server)

// WithLedger enables the provenance lookup route.
func WithLedger(l ledger.Service) Option {
	return func(s *Server) { s.ledger = l }
}

// WithAssetRenderer enables the asset rendering route.
func WithAssetRenderer(r orchestration.AssetRenderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithMaxMemory sets how much of a multipart upload is kept in memory
// before spilling to temporary files.
func WithMaxMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMemory = n
		}
	}
}

// WithAllowedOrigins restricts CORS origins. All origins are allowed by default.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a Server for the given pipeline.
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		router:    mux.NewRouter(),
		maxMemory: defaultMaxMemory,
		origins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(PathRecommendation, s.handleRecommendation).Methods(http.MethodPost)
	s.router.HandleFunc(PathRecommendationLegacy, s.handleRecommendation).Methods(http.MethodPost)
	s.router.HandleFunc(PathProvenance, s.handleProvenance).Methods(http.MethodGet)
	s.router.HandleFunc(PathAssets, s.handleAsset).Methods(http.MethodPost)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc(PathRecommendation, preflight).Methods(http.MethodOptions)
	s.router.HandleFunc(PathRecommendationLegacy, preflight).Methods(http.MethodOptions)
	s.router.HandleFunc(PathAssets, preflight).Methods(http.MethodOptions)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": HealthMessage})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleRecommendation called: path=%s", r.URL.Path)
	if err := r.ParseMultipartForm(s.maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("parse form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	eventID := r.FormValue(fieldEventID)
	if eventID == "" {
		s.writeJSON(w, http.StatusOK, orchestration.Result{})
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[fieldFiles]
	}
	docs, err := readUploads(headers)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := s.pipeline.Run(r.Context(), orchestration.Request{ID: eventID, Documents: docs})
	if err != nil {
		log.Errorf("recommendation %q failed: %v", eventID, err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProvenance(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, http.StatusNotFound, errors.New("provenance ledger is not configured"))
		return
	}
	key := mux.Vars(r)["key"]
	rec, err := s.ledger.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no provenance record for %q", key))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type assetRequest struct {
	Prompt string `json:"prompt"`
}

type assetResponse struct {
	Class         string   `json:"class"`
	Key           string   `json:"key"`
	ImageLocation string   `json:"image_location"`
	Tiles         []string `json:"tiles,omitempty"`
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		s.writeError(w, http.StatusNotFound, errors.New("asset renderer is not configured"))
		return
	}
	class := mux.Vars(r)["class"]
	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	log.Infof("handleAsset called: class=%s", class)
	asset, err := s.renderer.Generate(r.Context(), class, req.Prompt)
	switch {
	case errors.Is(err, render.ErrUnknownClass):
		s.writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assetResponse{
		Class:         asset.Class,
		Key:           asset.Key,
		ImageLocation: asset.Locator,
		Tiles:         asset.Tiles,
	})
}

// readUploads reads every uploaded file. Empty files are skipped.
func readUploads(headers []*multipart.FileHeader) ([]*document.Document, error) {
	docs := make([]*document.Document, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		doc, err := document.Read(fh.Filename, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err as {"Error": msg}.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"Error": err.Error()})
}
