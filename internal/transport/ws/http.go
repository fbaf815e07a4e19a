package ws

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"antventure.ai/internal/protocol"
	"antventure.ai/internal/runner"
)

const maxRunBody = 1 << 20

// RunHandler serves POST /v1/run: one RUN document in, one DONE (or ERROR) document out.
func (s *Server) RunHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxRunBody))
		if err != nil {
			writeError(rw, protocol.NewError("", "", errors.Join(protocol.ErrMalformed, err)))
			return
		}
		req, err := protocol.ValidateRunRequest(raw)
		if err != nil {
			writeError(rw, protocol.NewError(req.RequestID, "", err))
			return
		}
		out, err := s.runner.Run(r.Context(), runner.Request{
			Params:  req.Params,
			Seed:    req.Seed,
			Workers: req.Workers,
		}, runner.Hooks{})
		if err != nil {
			writeError(rw, protocol.NewError(req.RequestID, out.RunID, err))
			return
		}
		writeJSONResponse(rw, http.StatusOK, doneMsg(req, out, req.IncludeTable))
	}
}

// SchemaHandler serves the RUN schema.
func SchemaHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/schema+json")
		_, _ = rw.Write(protocol.RunSchemaJSON())
	}
}

// RunsHandler lists indexed runs (GET /v1/runs?limit=N) or the rows of one run
// (GET /v1/runs?id=...).
func (s *Server) RunsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		idx := s.runner.Index()
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		if err := idx.Sync(r.Context()); err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			rows, err := idx.Samples(r.Context(), id)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSONResponse(rw, http.StatusOK, map[string]any{"run_id": id, "rows": rows})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := idx.Runs(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONResponse(rw, http.StatusOK, map[string]any{"runs": runs})
	}
}

func statusFor(code string) int {
	switch code {
	case protocol.ErrConfig:
		return http.StatusUnprocessableEntity
	case protocol.ErrBadRequest, protocol.ErrProtoBadRequest, protocol.ErrProtoVersion:
		return http.StatusBadRequest
	case protocol.ErrBusy:
		return http.StatusTooManyRequests
	case protocol.ErrCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(rw http.ResponseWriter, m protocol.ErrorMsg) {
	writeJSONResponse(rw, statusFor(m.Code), m)
}

func writeJSONResponse(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
