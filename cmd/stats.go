package cmd

import (
	"context"
	"fmt"

	"github.com/lectern/lectern/internal/log"
)

// runStats prints the indexed course analytics.
func runStats(logger log.Logger) error {
	ctx := context.Background()

	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	count, titles, err := a.Index.Analytics(ctx)
	if err != nil {
		return fmt.Errorf("reading analytics: %w", err)
	}

	fmt.Printf("Indexed courses: %d\n", count)
	for _, title := range titles {
		fmt.Printf("  %s\n", title)
	}
	return nil
}
