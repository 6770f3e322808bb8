// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package metric defines the OpenTelemetry instruments of the placement subsystem.
package metric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/tochemey/grainplacement"

// Placement outcomes
const (
	OutcomePlaced    = "placed"
	OutcomeExisting  = "existing"
	OutcomeConflict  = "conflict"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	strategyKey = attribute.Key("placement.strategy")
	outcomeKey  = attribute.Key("placement.outcome")
	reasonKey   = attribute.Key("placement.retry_reason")
	appliedKey  = attribute.Key("gossip.applied")
)

// PlacementMetric groups the placement instruments.
// A nil *PlacementMetric records nothing.
type PlacementMetric struct {
	placements  metric.Int64Counter
	conflicts   metric.Int64Counter
	retries     metric.Int64Counter
	gossip      metric.Int64Counter
	activations metric.Int64UpDownCounter
	latency     metric.Float64Histogram
}

// NewPlacementMetric creates the instruments on the given meter
func NewPlacementMetric(meter metric.Meter) (*PlacementMetric, error) {
	placementMetric := new(PlacementMetric)
	var err error

	if placementMetric.placements, err = meter.Int64Counter(
		"grain_placements_total",
		metric.WithDescription("Total number of placement requests by strategy and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create placements instrument, %v", err)
	}

	if placementMetric.conflicts, err = meter.Int64Counter(
		"grain_placement_conflicts_total",
		metric.WithDescription("Total number of placements that lost the directory registration race"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %v", err)
	}

	if placementMetric.retries, err = meter.Int64Counter(
		"grain_placement_retries_total",
		metric.WithDescription("Total number of placement retries by reason"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retries instrument, %v", err)
	}

	if placementMetric.gossip, err = meter.Int64Counter(
		"grain_load_snapshots_total",
		metric.WithDescription("Total number of load snapshots received, applied or discarded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create gossip instrument, %v", err)
	}

	if placementMetric.activations, err = meter.Int64UpDownCounter(
		"grain_activations",
		metric.WithDescription("Number of activations hosted by the local silo"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activations instrument, %v", err)
	}

	if placementMetric.latency, err = meter.Float64Histogram(
		"grain_placement_duration_seconds",
		metric.WithDescription("Placement latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create latency instrument, %v", err)
	}

	return placementMetric, nil
}

// Global creates the instruments on the global meter provider
func Global() (*PlacementMetric, error) {
	return NewPlacementMetric(otel.GetMeterProvider().Meter(instrumentationName))
}

// Noop returns instruments that record nothing
func Noop() *PlacementMetric {
	// the noop meter never fails
	placementMetric, _ := NewPlacementMetric(noop.NewMeterProvider().Meter(instrumentationName))
	return placementMetric
}

// RecordPlacement records a finished placement request
func (x *PlacementMetric) RecordPlacement(ctx context.Context, strategy, outcome string, elapsed time.Duration) {
	if x == nil {
		return
	}
	attrs := metric.WithAttributes(strategyKey.String(strategy), outcomeKey.String(outcome))
	x.placements.Add(ctx, 1, attrs)
	x.latency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordConflict records a lost registration race
func (x *PlacementMetric) RecordConflict(ctx context.Context, strategy string) {
	if x == nil {
		return
	}
	x.conflicts.Add(ctx, 1, metric.WithAttributes(strategyKey.String(strategy)))
}

// RecordRetry records a placement retry
func (x *PlacementMetric) RecordRetry(ctx context.Context, reason string) {
	if x == nil {
		return
	}
	x.retries.Add(ctx, 1, metric.WithAttributes(reasonKey.String(reason)))
}

// RecordSnapshot records a received load snapshot
func (x *PlacementMetric) RecordSnapshot(ctx context.Context, applied bool) {
	if x == nil {
		return
	}
	x.gossip.Add(ctx, 1, metric.WithAttributes(appliedKey.Bool(applied)))
}

// AddActivations moves the local activation gauge by delta
func (x *PlacementMetric) AddActivations(ctx context.Context, delta int64) {
	if x == nil {
		return
	}
	x.activations.Add(ctx, delta)
}
