// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("depviz.analysis")
	meter  = otel.Meter("depviz.analysis")
)

var (
	fileDuration    metric.Float64Histogram
	fileTotal       metric.Int64Counter
	projectDuration metric.Float64Histogram
	projectFiles    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fileDuration, err = meter.Float64Histogram(
			"depviz_file_analysis_duration_seconds",
			metric.WithDescription("Duration of single-file analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileTotal, err = meter.Int64Counter(
			"depviz_file_analysis_total",
			metric.WithDescription("Total number of single-file analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		projectDuration, err = meter.Float64Histogram(
			"depviz_project_analysis_duration_seconds",
			metric.WithDescription("Duration of whole-project analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		projectFiles, err = meter.Int64Histogram(
			"depviz_project_analysis_files",
			metric.WithDescription("Files discovered per project analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordFileAnalysis(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	fileDuration.Record(ctx, duration.Seconds(), attrs)
	fileTotal.Add(ctx, 1, attrs)
}

func recordProjectAnalysis(ctx context.Context, duration time.Duration, files, failed int) {
	if err := initMetrics(); err != nil {
		return
	}
	projectDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("partial", failed > 0)))
	projectFiles.Record(ctx, int64(files))
}

func startFileSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analysis.AnalyzeFile",
		trace.WithAttributes(attribute.String("file", path)),
	)
}

func startProjectSpan(ctx context.Context, root, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analysis.AnalyzeProject",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.String("run_id", runID),
		),
	)
}

func setGraphResult(span trace.Span, nodes, edges int) {
	span.SetAttributes(
		attribute.Int("nodes", nodes),
		attribute.Int("edges", edges),
	)
}
