// Command cachectl runs single cache operations against any supported backend.
//
//	cachectl --provider redis --redis localhost:6379 -n users set alice '{"age":3}' --json
//	cachectl --config cache.yaml incr hits --step 5
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(&app{out: os.Stdout}).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
