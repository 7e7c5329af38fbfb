package strategy_test

import (
	"context"
	"fmt"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
	"github.com/HK-Mattew/go-limits/pkg/strategy"
)

func ExampleFixedWindow() {
	limiter := strategy.NewFixedWindow(storage.NewMemoryStorage())
	item := limits.PerMinute(10)

	admitted, err := limiter.Hit(context.Background(), item, "user_123")
	if err != nil {
		panic(err)
	}

	fmt.Println(admitted)
	// Output:
	// true
}

func ExampleMovingWindow() {
	limiter, err := strategy.NewMovingWindow(storage.NewMemoryStorage())
	if err != nil {
		panic(err)
	}

	item, err := limits.Parse("2/minute")
	if err != nil {
		panic(err)
	}

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		admitted, err := limiter.Hit(ctx, item, "user_123")
		if err != nil {
			panic(err)
		}

		fmt.Println(admitted)
	}

	// Output:
	// true
	// true
	// false
}
