package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gear6io/cnpj-pipeline/cli"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
)

func main() {
	// first signal cancels the run and lets it drain, a second one kills
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := cli.ExecuteWithContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := errors.GetCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "Code: %s\n", code)
		}
		stop()
		os.Exit(1)
	}
}
