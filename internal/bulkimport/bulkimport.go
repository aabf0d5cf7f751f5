// Package bulkimport scans a set of candidate environment directories in
// parallel, each worker owning its path exclusively and touching the
// registry only through its single mutex-guarded handle.
package bulkimport

import (
	"context"

	"github.com/alitto/pond/v2"

	"github.com/vistralis/zen/internal/scanner"
)

// Result pairs one scanned environment root with its outcome.
type Result struct {
	EnvRoot  string
	Packages []scanner.Package
	Err      error
}

// ScanAll scans every envRoot concurrently, bounded by concurrency workers,
// and returns one Result per input path in input order. A per-path scan
// failure is recorded on that Result rather than aborting the whole batch.
func ScanAll(ctx context.Context, envRoots []string, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	pool := pond.NewResultPool[Result](concurrency)
	group := pool.NewGroupContext(ctx)

	for _, root := range envRoots {
		root := root
		group.SubmitErr(func() (Result, error) {
			select {
			case <-ctx.Done():
				return Result{EnvRoot: root, Err: ctx.Err()}, nil
			default:
			}
			return Result{EnvRoot: root, Packages: scanner.Scan(root)}, nil
		})
	}

	results, err := group.Wait()
	if err != nil {
		return results, err
	}
	return results, nil
}
