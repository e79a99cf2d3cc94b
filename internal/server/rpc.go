package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apierrors "github.com/copyleftdev/mnfit/internal/errors"
)

// JSON-RPC 2.0 error codes. Codes below -32000 are reserved by the
// protocol; the others map API error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
	rpcNotFound       = -32001
	rpcConflict       = -32002
)

var rpcCodes = map[apierrors.Code]int{
	apierrors.CodeInvalidRequest:     rpcInvalidParams,
	apierrors.CodeDerivativeContract: rpcInvalidParams,
	apierrors.CodeNotFound:           rpcNotFound,
	apierrors.CodeConflict:           rpcConflict,
	apierrors.CodeInternal:           rpcInternalError,
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    []string `json:"data,omitempty"`
}

type fitID struct {
	ID string `json:"id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "fit.start":
		var req FitRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startFit(&req)
		}
	case "fit.status":
		var p fitID
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.fitStatus(p.ID)
		}
	case "fit.cancel":
		var p fitID
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.cancelFit(p.ID)
		}
	case "fit.list":
		result = map[string]interface{}{"fits": s.listFits()}
	case "models.list":
		result = s.modelList()
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithAPIError(w, err, request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams accepts params as an object or as an array holding one
// object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apierrors.New(apierrors.CodeInvalidRequest, "missing params")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apierrors.Errorf(apierrors.CodeInvalidRequest, "invalid params: %v", err)
		}
		if len(list) != 1 {
			return apierrors.Errorf(apierrors.CodeInvalidRequest, "expected 1 positional param, got %d", len(list))
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierrors.Errorf(apierrors.CodeInvalidRequest, "invalid params: %v", err)
	}
	return nil
}

func (s *Server) respondWithAPIError(w http.ResponseWriter, err error, id interface{}) {
	e := apierrors.Wrap(err, "")
	code, ok := rpcCodes[e.Code]
	if !ok {
		code = rpcInternalError
	}
	message := e.Message
	if message == "" && e.Err != nil {
		message = e.Err.Error()
	}
	s.writeRPCError(w, rpcError{Code: code, Message: message, Data: e.Details}, id)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.writeRPCError(w, rpcError{Code: code, Message: message}, id)
}

func (s *Server) writeRPCError(w http.ResponseWriter, e rpcError, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  e.Code,
		"message": e.Message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   e,
		"id":      id,
	})
}
