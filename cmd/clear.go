package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/lectern/lectern/internal/log"
)

// runClear removes every indexed course and chunk. Destructive, so it
// refuses to run without --yes.
func runClear(logger log.Logger) error {
	confirmed := false
	for _, arg := range os.Args[2:] {
		if arg == "--yes" || arg == "-yes" {
			confirmed = true
		}
	}
	if !confirmed {
		return fmt.Errorf("clear removes all indexed courses; re-run with --yes to confirm")
	}

	ctx := context.Background()

	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Index.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}

	fmt.Println("Index cleared.")
	return nil
}
