package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filevault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the server (default from Config)
//	-t string   bearer access token
//	-p string   project name
//	-b string   bucket name
//	-n int      chunk size in KiB
//	-i int      request timeout in seconds
//	-s string   client state file ("" disables it)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-p", "-b", "-n", "-i", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "bearer access token")
	fs.StringVar(&cfg.Project, "p", cfg.Project, "project name")
	fs.StringVar(&cfg.Bucket, "b", cfg.Bucket, "bucket name")
	chunkKiB := fs.Int64("n", cfg.ChunkSize/1024, "chunk size (in KiB)")
	timeout := fs.Int("i", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.StatePath, "s", cfg.StatePath, "client state file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ChunkSize = *chunkKiB * 1024
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
