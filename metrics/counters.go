package metrics

import (
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
)

// Package-level counters/timers registered against go-ethereum's default
// metrics registry, exposed by StartGethMetricServer's Prometheus
// handler. Named the same "domain/subsystem/measurement" way the
// teacher's own les/downloader package names its meters.
var (
	RequestsTotal      = gethmetrics.NewRegisteredCounter("relay/jsonrpc/requests", nil)
	RequestsRateLimited = gethmetrics.NewRegisteredCounter("relay/jsonrpc/rate_limited", nil)
	RequestErrors      = gethmetrics.NewRegisteredCounter("relay/jsonrpc/errors", nil)
	RequestDuration    = gethmetrics.NewRegisteredTimer("relay/jsonrpc/duration", nil)

	MirrorRequestsTotal = gethmetrics.NewRegisteredCounter("relay/mirror/requests", nil)
	MirrorRequestErrors = gethmetrics.NewRegisteredCounter("relay/mirror/errors", nil)

	ConsensusSubmissions      = gethmetrics.NewRegisteredCounter("relay/consensus/submissions", nil)
	ConsensusSubmissionErrors = gethmetrics.NewRegisteredCounter("relay/consensus/submission_errors", nil)
)
