package cluster

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/thebtf/otus/pkg/cluster")

	distanceEvaluations, _ = meter.Int64Counter("otus.cluster.distance_evaluations",
		metric.WithDescription("True distance evaluations performed by clustering passes"))
	passes, _ = meter.Int64Counter("otus.cluster.passes",
		metric.WithDescription("Completed clustering passes"))
)

func recordPass(ctx context.Context, st PassStats) {
	if distanceEvaluations != nil {
		distanceEvaluations.Add(ctx, int64(st.Tries))
	}
	if passes != nil {
		passes.Add(ctx, 1)
	}
}
