package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ygrebnov/parsec"
	"github.com/ygrebnov/parsec/internal/observability"
	"github.com/ygrebnov/parsec/requestor"
)

func main() {
	var (
		verbose = flag.Bool("verbose", false, "Enable structured logging of composite progress")
		budget  = flag.Duration("time-limit", 500*time.Millisecond, "Time limit applied to the outer parallel stage")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("failed to build logger: %v", err)
		}
		defer logger.Sync()
		parsec.Observer = observability.NewZap(logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fetchA := requestor.FromFunc(ctx, func(c context.Context, name string) (string, error) {
		select {
		case <-time.After(80 * time.Millisecond):
			return fmt.Sprintf("%s-from-a", name), nil
		case <-c.Done():
			return "", c.Err()
		}
	})
	fetchB := requestor.FromFunc(ctx, func(c context.Context, name string) (string, error) {
		select {
		case <-time.After(20 * time.Millisecond):
			return fmt.Sprintf("%s-from-b", name), nil
		case <-c.Done():
			return "", c.Err()
		}
	})

	race := parsec.Race[string, string]([]requestor.Requestor[string, string]{fetchA, fetchB})

	normalize := requestor.FromMapper(func(s string) string { return s + "!" })

	pipeline := parsec.Sequence[string]([]requestor.Requestor[string, string]{
		requestor.FromMapper(func(s string) string { return s }),
		normalize,
	})

	enrich := requestor.FromFunc(ctx, func(c context.Context, name string) (string, error) {
		select {
		case <-time.After(150 * time.Millisecond):
			return "enriched:" + name, nil
		case <-c.Done():
			return "", c.Err()
		}
	})

	summary := parsec.Parallel[string, string](
		[]requestor.Requestor[string, string]{race},
		parsec.WithOptionals[string, string](enrich),
		parsec.WithTimeLimit[string, string](*budget),
	)

	winner, err := parsec.Await(ctx, race, "lookup")
	if err != nil {
		log.Fatalf("race failed: %v", err)
	}
	fmt.Println("race winner:", winner)

	threaded, err := parsec.Await(ctx, pipeline, "payload")
	if err != nil {
		log.Fatalf("sequence failed: %v", err)
	}
	fmt.Println("sequence result:", threaded)

	results, err := parsec.Await(ctx, summary, "lookup")
	if err != nil {
		fmt.Fprintln(os.Stderr, "parallel summary failed:", err)
		os.Exit(1)
	}
	for i, r := range results {
		if v, ok := r.Value(); ok {
			fmt.Printf("summary[%d]: %s\n", i, v)
			continue
		}
		reason, _ := r.Reason()
		fmt.Printf("summary[%d]: %v\n", i, reason)
	}
}
