// Command tokengate runs the edge gateway and the auth server, and
// manages the SQLite user directory.
//
//	tokengate gateway    --config tokengate.yaml
//	tokengate authserver --config tokengate.yaml
//	tokengate user add   --username alice --display-name Alice --roles USER,ADMIN
//
// Every setting can also be given as TOKENGATE_* environment variables.
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

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
