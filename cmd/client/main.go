// Command client uploads one local file to a filevault bucket, resuming an
// interrupted upload of the same file when the server still holds it.
//
// Usage:
//
//	client [-a url] [-t token] [-p project] [-b bucket] [-n KiB] [-i seconds] [-s state.db] <local-file> <remote-path>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/dmitrijs2005/filevault/internal/client/state"
	"github.com/dmitrijs2005/filevault/internal/client/uploader"
	"github.com/dmitrijs2005/filevault/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, config.LoadConfig, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run performs one upload and returns the process exit code. Deferred
// cleanup completes before it returns.
func run(ctx context.Context, args []string, load func() *config.Config, stdout, stderr io.Writer) int {

	if len(args) < 3 {
		fmt.Fprintln(stderr, "usage: client [flags] <local-file> <remote-path>")
		return 2
	}
	localPath, remotePath := args[len(args)-2], args[len(args)-1]

	cfg := load()
	logger, err := logging.New(stderr, "text", "info")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	up, err := uploader.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if cfg.StatePath != "" {
		st, err := state.Open(ctx, cfg.StatePath)
		if err != nil {
			fmt.Fprintf(stderr, "state: %v\n", err)
			return 1
		}
		defer st.Close()
		if err := up.Remember(ctx, st.Metadata); err != nil {
			fmt.Fprintf(stderr, "state: %v\n", err)
			return 1
		}
	}

	status, err := up.Upload(ctx, localPath, remotePath)
	if err != nil {
		fmt.Fprintf(stderr, "upload failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
