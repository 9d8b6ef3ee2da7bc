// Command flow creates, checks, arranges and exports service flow
// documents, and pulls pages from the forms backend.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		bad.Fprintf(root.ErrOrStderr(), "flow: %v\n", err)
		stop()
		os.Exit(1)
	}
}
