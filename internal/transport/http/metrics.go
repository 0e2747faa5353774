package httptransport

import "expvar"

var (
	metricAccountQueryTotal  = expvar.NewInt("account_query_total")
	metricAccountQueryErrors = expvar.NewInt("account_query_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("settlement_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("settlement_sse_connections_active")
)
