package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

const maxBodyBytes = 1 << 20

// Handler returns the HTTP handler:
//
//	GET  /lists?owner_type=&owner_id=&field_id=   index
//	GET  /lists/tree?owner_type=&owner_id=&field_id=
//	POST /lists/{op}                              envelope without op
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lists", s.handleQuery(OpIndex))
	mux.HandleFunc("GET /lists/tree", s.handleQuery(OpTree))
	mux.HandleFunc("POST /lists/{op}", s.handleOp)
	return mux
}

func (s *Service) handleQuery(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := Request{
			Op:        op,
			OwnerType: q.Get("owner_type"),
			OwnerID:   q.Get("owner_id"),
			FieldID:   q.Get("field_id"),
		}
		s.respond(w, r, req)
	}
}

func (s *Service) handleOp(w http.ResponseWriter, r *http.Request) {
	var req Request
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		id := requestID(r.Header.Get(RequestIDHeader))
		writeJSON(w, id, http.StatusBadRequest, ErrorBody{Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	req.Op = r.PathValue("op")
	s.respond(w, r, req)
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, req Request) {
	id := requestID(r.Header.Get(RequestIDHeader))
	status, body := s.Handle(r.Context(), id, req)
	writeJSON(w, id, status, body)
}

func requestID(incoming string) string {
	if incoming != "" {
		return incoming
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, id string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, id)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
