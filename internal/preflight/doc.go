// Package preflight checks that archivesearch can serve before it starts:
// every configured snapshot parses, the data directory is writable with
// room for logs and telemetry, the descriptor limit is sane, and the
// name-suggestion service answers.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
