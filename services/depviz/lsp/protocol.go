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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// MaxContentLength bounds the body of one incoming message (64MB). It
// leaves room for a source file at the parser's size limit plus its JSON
// escaping and envelope.
const MaxContentLength = 64 * 1024 * 1024

// Message is any JSON-RPC message: request, notification or response.
//
// A request has Method and ID, a notification has Method only, and a
// response has ID with Result or Error. IDs are kept raw so numeric and
// string IDs round-trip unchanged.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether the message is a notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether the message answers an earlier request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// Handler receives incoming requests and notifications. It is called on
// the read loop goroutine, in arrival order.
type Handler func(ctx context.Context, msg *Message)

// Protocol handles JSON-RPC communication over Content-Length framed streams.
//
// Description:
//
//	Either side of a connection can use a Protocol. Outgoing requests are
//	matched to responses by ID; incoming requests and notifications are
//	handed to the Handler passed to ReadLoop.
//
// Thread Safety:
//
//	Safe for concurrent use. Writes are serialized.
type Protocol struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	nextID    atomic.Int64
	pending   map[string]chan *Message
	pendingMu sync.Mutex

	closed atomic.Bool
}

// NewProtocol creates a new JSON-RPC protocol handler.
//
// Inputs:
//
//	r - Reader for incoming messages. May be nil for write-only use.
//	w - Writer for outgoing messages.
//
// Outputs:
//
//	*Protocol - The configured protocol handler.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Protocol{
		reader:  reader,
		writer:  w,
		pending: make(map[string]chan *Message),
	}
}

// SendRequest sends a request and waits for the response.
//
// Description:
//
//	Assigns a numeric ID, writes the request and blocks until the matching
//	response arrives, the context is done, or the protocol is closed.
//	ReadLoop must be running for responses to be delivered.
//
// Outputs:
//
//	json.RawMessage - The result field of the response.
//	error - *RPCError if the peer returned an error, ErrConnectionClosed if
//	        the protocol closed, or the context error.
func (p *Protocol) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if p.closed.Load() {
		return nil, ErrConnectionClosed
	}

	id := json.RawMessage(strconv.FormatInt(p.nextID.Add(1), 10))
	key := string(id)

	respCh := make(chan *Message, 1)
	p.pendingMu.Lock()
	p.pending[key] = respCh
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, key)
		p.pendingMu.Unlock()
	}()

	msg := &Message{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		msg.Params = raw
	}

	if err := p.writeMessage(msg); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// SendNotification sends a notification. No response is expected.
func (p *Protocol) SendNotification(method string, params interface{}) error {
	if p.closed.Load() {
		return ErrConnectionClosed
	}

	msg := &Message{JSONRPC: JSONRPCVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		msg.Params = raw
	}
	return p.writeMessage(msg)
}

// Reply sends a successful response. A nil result is sent as null.
func (p *Protocol) Reply(id json.RawMessage, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return p.ReplyError(id, &RPCError{Code: CodeInternalError, Message: "marshal result: " + err.Error()})
	}
	return p.writeMessage(&Message{JSONRPC: JSONRPCVersion, ID: id, Result: raw})
}

// ReplyError sends an error response.
func (p *Protocol) ReplyError(id json.RawMessage, rpcErr *RPCError) error {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return p.writeMessage(&Message{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr})
}

// writeMessage writes a message with the Content-Length header.
func (p *Protocol) writeMessage(msg interface{}) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := io.WriteString(p.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// ReadLoop reads messages until the stream ends or the context is done.
//
// Description:
//
//	Responses are routed to waiting SendRequest calls. Requests and
//	notifications are passed to handler; a nil handler drops them. Bodies
//	that are not valid JSON are answered with a parse error.
//
// Outputs:
//
//	error - nil on clean end of stream or after Close, ErrConnectionClosed
//	        if the stream ended mid-message, otherwise the read or context
//	        error.
func (p *Protocol) ReadLoop(ctx context.Context, handler Handler) error {
	if p.reader == nil {
		return fmt.Errorf("no reader configured")
	}
	defer p.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		body, err := p.readMessage()
		if err != nil {
			if p.closed.Load() || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrConnectionClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			_ = p.ReplyError(nil, &RPCError{Code: CodeParseError, Message: "parse error: " + err.Error()})
			continue
		}
		p.handleMessage(ctx, &msg, handler)
	}
}

// readMessage reads a single framed message body.
func (p *Protocol) readMessage() ([]byte, error) {
	contentLength := -1

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && (line != "" || contentLength >= 0) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimSpace(line)

		// Empty line marks end of headers.
		if line == "" {
			if contentLength < 0 {
				continue
			}
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		value = strings.TrimSpace(value)
		contentLength, err = strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid Content-Length value %q: %w", value, err)
		}
		if contentLength < 0 {
			return nil, fmt.Errorf("negative Content-Length: %d", contentLength)
		}
		if contentLength > MaxContentLength {
			return nil, fmt.Errorf("%w: Content-Length %d exceeds %d", ErrMessageTooLarge, contentLength, MaxContentLength)
		}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// handleMessage dispatches a received message.
func (p *Protocol) handleMessage(ctx context.Context, msg *Message, handler Handler) {
	if msg.IsResponse() {
		p.pendingMu.Lock()
		ch, ok := p.pending[string(msg.ID)]
		p.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
		return
	}

	if msg.Method == "" {
		_ = p.ReplyError(msg.ID, &RPCError{Code: CodeInvalidRequest, Message: "message has no method"})
		return
	}
	if handler != nil {
		handler(ctx, msg)
	}
}

// Close marks the protocol as closed.
//
// Description:
//
//	Prevents further sends and fails every pending request with a
//	connection-closed error. Does not close the underlying streams.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) Close() {
	p.closed.Store(true)

	p.pendingMu.Lock()
	for key, ch := range p.pending {
		select {
		case ch <- &Message{
			JSONRPC: JSONRPCVersion,
			ID:      json.RawMessage(key),
			Error: &RPCError{
				Code:    CodeConnectionClosed,
				Message: "connection closed",
			},
		}:
		default:
		}
	}
	p.pendingMu.Unlock()
}

// IsClosed returns true if the protocol has been closed.
func (p *Protocol) IsClosed() bool {
	return p.closed.Load()
}
