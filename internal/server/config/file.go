package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/flagx"
	"github.com/dmitrijs2005/filevault/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration, decoded from JSON
// or YAML. Durations accept "15m" style strings. Zero values leave the
// corresponding Config field unchanged.
type FileConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN        string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey          string         `json:"secret_key" yaml:"secret_key"`
	SignerID           string         `json:"signer_id" yaml:"signer_id"`
	UploadExpiration   timex.Duration `json:"upload_expiration" yaml:"upload_expiration"`
	DownloadExpiration timex.Duration `json:"download_expiration" yaml:"download_expiration"`
	UploaderCookieName string         `json:"uploader_cookie_name" yaml:"uploader_cookie_name"`
	DataRoot           string         `json:"data_root" yaml:"data_root"`
	ArchiveBlocks      *bool          `json:"archive_blocks" yaml:"archive_blocks"`
	S3RootUser         string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region           string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	LogFormat          string         `json:"log_format" yaml:"log_format"`
}

// parseFile loads the file named by -c/-config, if any, and overlays it on
// config. The format is YAML for .yaml/.yml files and JSON otherwise.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, c)
	default:
		err = json.Unmarshal(raw, c)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SignerID, c.SignerID)
	if c.UploadExpiration.Duration > 0 {
		config.UploadExpiration = c.UploadExpiration.Duration
	}
	if c.DownloadExpiration.Duration > 0 {
		config.DownloadExpiration = c.DownloadExpiration.Duration
	}
	setString(&config.UploaderCookieName, c.UploaderCookieName)
	setString(&config.DataRoot, c.DataRoot)
	if c.ArchiveBlocks != nil {
		config.ArchiveBlocks = *c.ArchiveBlocks
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
