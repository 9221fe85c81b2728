// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /processes/{id}", middleware.WithLogging(handler))

Logs request start (request_id, method, path, remote) and completion
(status, duration_ms).

# Request IDs

WithRequestID wraps the whole mux. It reuses an incoming X-Request-ID or
generates a UUID, echoes it on the response and stores it in the request
context for RequestID.

# Authentication

Actors send X-Actor-ID and X-Actor-Key, where the key is the HMAC issued by
auth.GenerateActorKey:

	mux.HandleFunc("POST /processes/{id}/entries",
		middleware.WithLogging(middleware.RequireActor(cfg.ActorKeySalt, h.SubmitEntry)))

The handler reads the caller with middleware.Actor(r.Context()). Registry
endpoints use RequireAdmin with the operator X-Admin-Key.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(middleware.WithRequestID(mux)),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.CodedErrorResponse(w, http.StatusConflict, "BID_SUPERSEDED", msg, metadata)

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Handles X-Forwarded-For and X-Real-IP; used in request logs.
*/
package middleware
