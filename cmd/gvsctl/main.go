// Command gvsctl is the terminal front end of the GVS console: sign in,
// upload and export workbooks, start ML jobs and watch them finish.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, closeConsole := newRootCmd()
	err := root.ExecuteContext(ctx)
	if closeErr := closeConsole(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
