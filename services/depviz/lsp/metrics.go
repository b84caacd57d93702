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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for LSP operations.
var (
	tracer = otel.Tracer("depviz.lsp")
	meter  = otel.Meter("depviz.lsp")
)

// Metrics for LSP operations.
var (
	messageLatency metric.Float64Histogram
	messageTotal   metric.Int64Counter
	openDocuments  metric.Int64UpDownCounter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		messageLatency, err = meter.Float64Histogram(
			"depviz_lsp_message_duration_seconds",
			metric.WithDescription("Duration of LSP message handling"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		messageTotal, err = meter.Int64Counter(
			"depviz_lsp_messages_total",
			metric.WithDescription("Total number of LSP messages handled"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		openDocuments, err = meter.Int64UpDownCounter(
			"depviz_lsp_open_documents",
			metric.WithDescription("Number of documents open in the editor"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordMessage(ctx context.Context, method string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	messageLatency.Record(ctx, duration.Seconds(), attrs)
	messageTotal.Add(ctx, 1, attrs)
}

func recordOpenDocuments(ctx context.Context, delta int64) {
	if err := initMetrics(); err != nil {
		return
	}
	openDocuments.Add(ctx, delta)
}

func startMessageSpan(ctx context.Context, method, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lsp."+method,
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("session_id", sessionID),
		),
	)
}
