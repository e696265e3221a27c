package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tootcast_ingest_cycles_total",
		Help: "The total number of ingestion cycles started",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tootcast_ingest_fetch_errors_total",
		Help: "The total number of failed feed fetches",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tootcast_ingest_fetch_duration_seconds",
		Help:    "Duration of feed fetches including retries",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket
	})

	postsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tootcast_ingest_posts_total",
		Help: "Posts seen by the ingestion loop by outcome",
	}, []string{"outcome"})
)

const (
	outcomeInserted = "inserted"
	outcomeKnown    = "known"
	outcomeFiltered = "filtered"
	outcomeDropped  = "dropped"
)
