// Package config loads runtime configuration for the filevault upload client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the filevault server
//	-t string   bearer access token
//	-p string   project name
//	-b string   bucket name
//	-n int      chunk size (KiB)
//	-i int      per-request timeout (seconds)
//	-s string   client state file, remembers the uploader identity
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "access_token": "eyJ...",
//	  "project": "athena",
//	  "bucket": "files",
//	  "chunk_size": 1048576,
//	  "request_timeout": "30s",
//	  "state_path": "filevault-client.db"
//	}
package config
