// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the language server.
var (
	// ErrNotInitialized indicates a request arrived before initialize.
	ErrNotInitialized = errors.New("server not initialized")

	// ErrShutdown indicates a request arrived after shutdown.
	ErrShutdown = errors.New("server is shutting down")

	// ErrInvalidParams indicates request params could not be decoded.
	ErrInvalidParams = errors.New("invalid params")

	// ErrConnectionClosed indicates the peer went away or the protocol was closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMessageTooLarge indicates a Content-Length above MaxContentLength.
	ErrMessageTooLarge = errors.New("message too large")
)

// JSON-RPC and LSP error codes.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32002
	CodeConnectionClosed     = -32099
	CodeRequestCancelled     = -32800
)

// RPCError is a JSON-RPC error object.
type RPCError struct {
	// Code is the JSON-RPC error code.
	Code int `json:"code"`

	// Message is a short description.
	Message string `json:"message"`

	// Data contains optional additional data about the error.
	Data interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound returns true if the method is not supported by the peer.
func (e *RPCError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}

// IsServerNotInitialized returns true if the server is not initialized.
func (e *RPCError) IsServerNotInitialized() bool {
	return e.Code == CodeServerNotInitialized
}

// toRPCError maps an internal error to the JSON-RPC error sent to the client.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, ErrNotInitialized):
		return &RPCError{Code: CodeServerNotInitialized, Message: err.Error()}
	case errors.Is(err, ErrShutdown):
		return &RPCError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, ErrInvalidParams):
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
}
