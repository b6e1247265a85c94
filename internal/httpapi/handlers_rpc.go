package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/archon-iirc/archon/internal/toolbridge"
)

type rpcRequest struct {
	JSONRPC   string          `json:"jsonrpc"`
	ID        any             `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"session_id"`
}

// handleRPC answers the JSON-RPC 2.0 envelope on /rpc, dispatching to
// internal/toolbridge's fixed tool vocabulary (spec.md §4.12). The session
// id travels both as an optional request field and as the X-Session-Id
// header, since a bare JSON-RPC client has no other place to carry it
// across calls; the header wins when both are set.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRPCError(w, nil, toolbridge.CodeParseError, "parse error")
		return
	}

	sessionID := req.SessionID
	if h := r.Header.Get("X-Session-Id"); h != "" {
		sessionID = h
	}
	clientID := r.Header.Get("X-Client-Id")
	if clientID == "" {
		clientID = r.RemoteAddr
	}

	result, newSessionID, rpcErr := s.bridge.Dispatch(r.Context(), sessionID, clientID, req.Method, req.Params)
	w.Header().Set("X-Session-Id", newSessionID)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	})
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}
