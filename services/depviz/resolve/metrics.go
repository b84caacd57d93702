// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

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
	tracer = otel.Tracer("depviz.resolve")
	meter  = otel.Meter("depviz.resolve")
)

var (
	indexBuildDuration metric.Float64Histogram
	indexSymbols       metric.Int64Histogram
	indexFileFailures  metric.Int64Counter
	loadTotal          metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		indexBuildDuration, err = meter.Float64Histogram(
			"depviz_index_build_duration_seconds",
			metric.WithDescription("Duration of workspace symbol index builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexSymbols, err = meter.Int64Histogram(
			"depviz_index_symbols",
			metric.WithDescription("Number of symbols in a built index"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexFileFailures, err = meter.Int64Counter(
			"depviz_index_file_failures_total",
			metric.WithDescription("Files skipped during index builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loadTotal, err = meter.Int64Counter(
			"depviz_unit_load_total",
			metric.WithDescription("Total number of unit loads"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordIndexBuild(ctx context.Context, duration time.Duration, symbols, failures int) {
	if err := initMetrics(); err != nil {
		return
	}
	indexBuildDuration.Record(ctx, duration.Seconds())
	indexSymbols.Record(ctx, int64(symbols))
	if failures > 0 {
		indexFileFailures.Add(ctx, int64(failures))
	}
}

func recordLoad(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	loadTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func startIndexSpan(ctx context.Context, root string, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "resolve.BuildIndex",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.Int("files", files),
		),
	)
}
