package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/lectern/lectern/internal/log"
)

// runIngest indexes course documents from a folder.
// The folder comes from the first positional argument, falling back to
// the configured docs_dir.
func runIngest(logger log.Logger) error {
	ctx := context.Background()

	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	dir := a.Config.DocsDir
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}
	if dir == "" {
		return fmt.Errorf("no folder given: pass a path or set docs_dir")
	}

	courses, chunks, err := a.Ingestor.AddCourseFolder(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Indexed %d new course(s), %d chunk(s) from %s\n", courses, chunks, dir)
	return nil
}
