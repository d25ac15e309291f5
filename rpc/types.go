package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"vaultauction/core/state"
	"vaultauction/native/auction"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeEngineError    = -32010
	codeRejected       = -32011
	codeConflict       = -32020
	codeRateLimited    = -32029
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// EngineErrorData identifies an engine rejection so clients can branch on
// the name rather than the message.
type EngineErrorData struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func invalidParams(detail string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: detail}
}

// toRPCError maps an operation failure onto the wire. Engine rejections keep
// their stable name; token and custody failures surface their message.
func toRPCError(err error) (int, *RPCError) {
	var rpcErr *RPCError
	switch {
	case errors.As(err, &rpcErr):
		if rpcErr.Code == codeUnauthorized {
			return http.StatusUnauthorized, rpcErr
		}
		return http.StatusBadRequest, rpcErr
	case errors.Is(err, state.ErrConflict):
		return http.StatusConflict, &RPCError{Code: codeConflict, Message: "conflict", Data: err.Error()}
	case auction.Name(err) != "":
		return http.StatusOK, &RPCError{
			Code:    codeEngineError,
			Message: err.Error(),
			Data:    EngineErrorData{Name: auction.Name(err), Category: string(auction.Category(err))},
		}
	default:
		return http.StatusOK, &RPCError{Code: codeRejected, Message: err.Error()}
	}
}
