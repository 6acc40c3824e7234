package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filevault/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   HMAC secret key
//	-i string   signer identity tag
//	-t int      upload URL validity, minutes
//	-x int      download URL validity, minutes
//	-k string   uploader cookie name
//	-r string   data root directory
//	-z bool     archive new data blocks to S3
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level: debug, info, warn, error
//	-f string   log format: json or text
//
// Duration flags are minutes. Unknown flags are filtered out first, so -c
// (handled by parseFile) never collides with these.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-i", "-t", "-x", "-k", "-r", "-z", "-u", "-p", "-b", "-g", "-e", "-l", "-f",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SignerID, "i", config.SignerID, "signer id")

	uploadExpiration := fs.Int("t", int(config.UploadExpiration.Minutes()), "upload url validity (in minutes)")
	downloadExpiration := fs.Int("x", int(config.DownloadExpiration.Minutes()), "download url validity (in minutes)")

	fs.StringVar(&config.UploaderCookieName, "k", config.UploaderCookieName, "uploader cookie name")
	fs.StringVar(&config.DataRoot, "r", config.DataRoot, "data root directory")
	fs.BoolVar(&config.ArchiveBlocks, "z", config.ArchiveBlocks, "archive data blocks to S3")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UploadExpiration = time.Duration(*uploadExpiration) * time.Minute
	config.DownloadExpiration = time.Duration(*downloadExpiration) * time.Minute
}
