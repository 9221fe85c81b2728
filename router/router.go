// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/stall-allot/cliparse"
	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/handlers"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/store"
)

func NewRouter(svc *engine.Service, st store.Store, cfg cliparse.Config, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	processHandler := handlers.NewProcessHandler(svc)
	registryHandler := handlers.NewRegistryHandler(st)

	actor := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireActor(cfg.ActorKeySalt, h))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKey, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Registry (operator)
	mux.HandleFunc("PUT /stalls/{id}", admin(registryHandler.UpsertStall))
	mux.HandleFunc("PUT /branches/{id}/managers/{actor}", admin(registryHandler.AddManager))

	// Process lifecycle (branch managers)
	mux.HandleFunc("POST /stalls/{id}/processes", actor(processHandler.CreateProcess))
	mux.HandleFunc("POST /processes/{id}/extend", actor(processHandler.ExtendTimer))
	mux.HandleFunc("POST /processes/{id}/cancel", actor(processHandler.CancelProcess))
	mux.HandleFunc("POST /processes/{id}/resolve", actor(processHandler.Resolve))

	// Entries (any authenticated actor)
	mux.HandleFunc("POST /processes/{id}/entries", actor(processHandler.SubmitEntry))

	// Reads
	mux.HandleFunc("GET /stalls/{id}/processes", actor(processHandler.ListStallProcesses))
	mux.HandleFunc("GET /processes/{id}", actor(processHandler.GetProcess))
	mux.HandleFunc("GET /processes/{id}/activity", actor(processHandler.GetActivity))
	mux.HandleFunc("GET /processes/{id}/draw", actor(processHandler.VerifyDraw))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stall-allot API v1"))
	})

	return mux
}
