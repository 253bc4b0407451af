// Package retry retries the establishment of database connections.
//
// pgcopy retries only connecting. Once a pool exists, load and marker
// statements run exactly once; a failed run is re-executed by whoever
// scheduled it, and the completion marker makes that safe.
//
//	executor := retry.NewExecutor(
//	    retry.NewPostgreSQLErrorClassifier(),
//	    retry.NewExponentialBackoff(3),
//	)
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
package retry
