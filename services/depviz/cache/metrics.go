// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("depviz.cache")
	meter  = otel.Meter("depviz.cache")
)

var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheAnalyses  metric.Int64Counter
	cacheFailures  metric.Int64Counter
	cacheDiscarded metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"depviz_cache_hits_total",
			metric.WithDescription("Total number of file cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"depviz_cache_misses_total",
			metric.WithDescription("Total number of file cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheAnalyses, err = meter.Int64Counter(
			"depviz_cache_analyses_total",
			metric.WithDescription("Total number of analyses run by the file cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheFailures, err = meter.Int64Counter(
			"depviz_cache_failures_total",
			metric.WithDescription("Total number of failed file analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheDiscarded, err = meter.Int64Counter(
			"depviz_cache_discarded_total",
			metric.WithDescription("Analysis results discarded as stale"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordMiss(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordAnalysis(ctx context.Context, op string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	cacheAnalyses.Add(ctx, 1, attrs)
	if !success {
		cacheFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func recordDiscard(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheDiscarded.Add(ctx, 1)
}

func startCacheSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cache."+op,
		trace.WithAttributes(attribute.String("file", path)),
	)
}
