package health_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/satauth/health"
	"github.com/jonwraymond/satauth/storage"
)

func ExampleAggregator() {
	s := storage.NewMemory()
	agg := health.NewAggregator()
	agg.Register(health.NewStorageChecker(s))
	agg.Register(health.NewSessionChecker(s, 5*time.Minute))

	results := agg.CheckAll(context.Background())
	for _, name := range agg.Names() {
		fmt.Printf("%s: %s (%s)\n", name, results[name].Status, results[name].Message)
	}
	fmt.Println("overall:", health.Overall(results))
	// Output:
	// storage: healthy (storage reachable)
	// session: degraded (signed out)
	// overall: degraded
}
