/*
Package monitoring provides Prometheus metrics for uihost.

# Overview

Metrics live on their own registry under the uihost_ namespace. The same
Metrics value observes stores (pointer allocations and frees per kind),
guest sessions (calls, durations, traps by cause) and the document manager
(documents by engine), and its Gin middleware records HTTP traffic.

# Usage

	metrics := monitoring.NewMetrics()
	manager.WithObserver(metrics)
	metrics.WatchTotals(func() monitoring.Totals { ... })

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
