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

package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestPlacementMetric(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	placementMetric, err := NewPlacementMetric(provider.Meter("test"))
	require.NoError(t, err)

	placementMetric.RecordPlacement(ctx, "random", OutcomePlaced, 10*time.Millisecond)
	placementMetric.RecordPlacement(ctx, "random", OutcomeConflict, 10*time.Millisecond)
	placementMetric.RecordConflict(ctx, "random")
	placementMetric.RecordRetry(ctx, "unreachable")
	placementMetric.RecordSnapshot(ctx, true)
	placementMetric.RecordSnapshot(ctx, false)
	placementMetric.AddActivations(ctx, 3)
	placementMetric.AddActivations(ctx, -1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, point := range sum.DataPoints {
				sums[m.Name] += point.Value
			}
		}
	}

	assert.EqualValues(t, 2, sums["grain_placements_total"])
	assert.EqualValues(t, 1, sums["grain_placement_conflicts_total"])
	assert.EqualValues(t, 1, sums["grain_placement_retries_total"])
	assert.EqualValues(t, 2, sums["grain_load_snapshots_total"])
	assert.EqualValues(t, 2, sums["grain_activations"])
}

func TestNilAndNoopMetric(t *testing.T) {
	ctx := context.Background()
	var nilMetric *PlacementMetric
	assert.NotPanics(t, func() {
		nilMetric.RecordPlacement(ctx, "random", OutcomeFailed, time.Second)
		nilMetric.RecordConflict(ctx, "random")
		nilMetric.RecordRetry(ctx, "unreachable")
		nilMetric.RecordSnapshot(ctx, true)
		nilMetric.AddActivations(ctx, 1)
	})

	noopMetric := Noop()
	require.NotNil(t, noopMetric)
	assert.NotPanics(t, func() { noopMetric.RecordPlacement(ctx, "random", OutcomePlaced, time.Second) })

	global, err := Global()
	require.NoError(t, err)
	require.NotNil(t, global)
}
