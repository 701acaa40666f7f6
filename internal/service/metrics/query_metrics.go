package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    QueryLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "regimeflow",
            Subsystem: "query",
            Name:      "latency_seconds",
            Help:      "Latency of regime query endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    QueryErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "regimeflow",
            Subsystem: "query",
            Name:      "errors_total",
            Help:      "Errors by regime query endpoint",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(QueryLatency, QueryErrors)
    })
}
