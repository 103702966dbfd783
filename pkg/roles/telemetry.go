/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package roles

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/srediag/shmtable/pkg/roles"

type telemetry struct {
	tracer trace.Tracer
	items  metric.Int64Counter
	attrs  metric.MeasurementOption
}

func newTelemetry(tracer trace.Tracer, meter metric.Meter, role Role) (*telemetry, error) {
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	items, err := meter.Int64Counter("shmtable.items",
		metric.WithDescription("Items moved through the shared table"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, err
	}
	return &telemetry{
		tracer: tracer,
		items:  items,
		attrs:  metric.WithAttributes(attribute.String("role", role.String())),
	}, nil
}

func (t *telemetry) startRun(ctx context.Context, role Role, maxItems int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, role.String()+".run",
		trace.WithAttributes(attribute.Int("shmtable.max_items", maxItems)))
}

func (t *telemetry) item(ctx context.Context) {
	t.items.Add(ctx, 1, t.attrs)
}

func endRun(span trace.Span, res Result, err error) {
	span.SetAttributes(
		attribute.Int("shmtable.items", len(res.Items)),
		attribute.Bool("shmtable.cancelled", res.Cancelled),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
