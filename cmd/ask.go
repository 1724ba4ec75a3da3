package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lectern/lectern/internal/log"
)

// runAsk answers a single question without session history.
func runAsk(logger log.Logger) error {
	question := questionFromArgs(os.Args[2:])
	if question == "" {
		return fmt.Errorf("usage: lectern ask <question>")
	}

	ctx := context.Background()

	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	answer, sources, err := a.Assistant.Query(ctx, question, "")
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer)
	if len(sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range sources {
			if src.URL != "" {
				fmt.Printf("  %s (%s)\n", src.Text, src.URL)
			} else {
				fmt.Printf("  %s\n", src.Text)
			}
		}
	}
	return nil
}

// questionFromArgs joins argument words into a single question.
func questionFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
