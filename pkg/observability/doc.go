/*
Package observability turns session lifecycle hooks into Prometheus metrics
and structured log records.

Both producers return domain.LifecycleHooks, so they compose with Merge:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	eng, _ := cadence.New("./scripts", cadence.WithLifecycleHooks(hooks))
*/
package observability
