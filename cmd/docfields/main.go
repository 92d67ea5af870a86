package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/docfields/internal/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input, 3 when OCR is unavailable and 1 otherwise.
func exitCode(err error) int {
	switch common.StatusFromError(err).Code() {
	case codes.InvalidArgument, codes.NotFound:
		return 2
	case codes.Unavailable:
		return 3
	default:
		return 1
	}
}
