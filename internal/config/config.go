// Package config assembles the orchestrator's immutable configuration once
// at startup from environment variables and CLI flags, and exposes it to
// every component by value — there are no package-level mutable globals.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/filevine-s3-sync/internal/utils"
)

const (
	DefaultS3RootPrefix       = "zdrive"
	DefaultOrgFolderName      = "org"
	DefaultWebhookBindAddr    = "localhost:8090"
	DefaultProjectMapPath     = ".filevine-sync/project-map.json"
	DefaultDocumentKeysPath   = ".filevine-sync/document-keys.json"
	DefaultPollInterval       = 300
	DefaultRequireResolved    = false
	DefaultEnableOriginUpload = false
)

// Config is the orchestrator's full configuration surface, per §6's CLI
// surface and required environment variables.
type Config struct {
	// Local/object-store roots.
	ZDriveRoot string `mapstructure:"zdrive_root"`
	S3Path     string `mapstructure:"s3_path"`

	// Object key layout.
	S3RootPrefix  string `mapstructure:"s3_root_prefix"`
	OrgMarker     string `mapstructure:"org_marker"`
	OrgFolderName string `mapstructure:"org_folder_name"`

	// Origin upload behavior.
	RootFolderID       string `mapstructure:"root_folder_id"`
	RequireResolved    bool   `mapstructure:"require_resolved"`
	EnableOriginUpload bool   `mapstructure:"enable_origin_upload"`

	// Shared state paths.
	ProjectMapPath   string `mapstructure:"project_map_path"`
	DocumentKeysPath string `mapstructure:"document_keys_path"`

	// Poll loop.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`

	// Webhook HTTP server.
	WebhookBindAddr string `mapstructure:"webhook_bind_addr"`

	// Origin credentials and session endpoint.
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	UserID     string `mapstructure:"user_id"`
	OrgID      string `mapstructure:"org_id"`
	SessionURL string `mapstructure:"session_url"`

	// Object store credentials.
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`

	// Origin -> object store webhook refresh target.
	WebhookURL string `mapstructure:"webhook_url"`

	// DryRun runs discovery and a full pass against every project but
	// stubs every mutating object-store or Origin call to a log line —
	// operational tooling for previewing what a real run would do.
	DryRun bool `mapstructure:"dry_run"`
}

// Validate resolves paths and rejects configurations that would prevent
// startup outright. A missing webhook URL or Origin credential is not a
// validation failure here — those degrade individual features rather than
// blocking startup, per the configuration-error taxonomy.
func (c *Config) Validate() error {
	if c.ZDriveRoot == "" {
		return fmt.Errorf("config: ZDriveRoot is required")
	}
	root, err := utils.ResolvePath(c.ZDriveRoot)
	if err != nil {
		return fmt.Errorf("config: resolve ZDriveRoot: %w", err)
	}
	c.ZDriveRoot = root

	if !strings.HasPrefix(c.S3Path, "s3://") {
		return fmt.Errorf("config: S3Path must be s3://<bucket>[/prefix], got %q", c.S3Path)
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(c.S3Path, "s3://"), "/")
	if bucket == "" {
		return fmt.Errorf("config: S3Path missing bucket name")
	}
	c.BucketName = bucket
	if prefix != "" {
		c.S3RootPrefix = prefix
	}

	if c.S3RootPrefix == "" {
		c.S3RootPrefix = DefaultS3RootPrefix
	}
	if c.OrgFolderName == "" {
		c.OrgFolderName = DefaultOrgFolderName
	}
	if c.ProjectMapPath == "" {
		c.ProjectMapPath = DefaultProjectMapPath
	}
	if c.DocumentKeysPath == "" {
		c.DocumentKeysPath = DefaultDocumentKeysPath
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollInterval
	}
	if c.WebhookBindAddr == "" {
		c.WebhookBindAddr = DefaultWebhookBindAddr
	}

	return nil
}

// LogValue renders the config for structured logging with secrets masked,
// the same pattern the teacher's client config uses for tokens.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("zdrive_root", c.ZDriveRoot),
		slog.String("s3_path", c.S3Path),
		slog.String("s3_root_prefix", c.S3RootPrefix),
		slog.String("org_folder_name", c.OrgFolderName),
		slog.Bool("require_resolved", c.RequireResolved),
		slog.Bool("enable_origin_upload", c.EnableOriginUpload),
		slog.String("project_map_path", c.ProjectMapPath),
		slog.Int("poll_interval_seconds", c.PollIntervalSeconds),
		slog.String("webhook_bind_addr", c.WebhookBindAddr),
		slog.String("api_key", utils.MaskSecret(c.APIKey)),
		slog.String("api_secret", utils.MaskSecret(c.APISecret)),
		slog.String("user_id", c.UserID),
		slog.String("org_id", c.OrgID),
		slog.Bool("session_url_set", c.SessionURL != ""),
		slog.String("bucket_name", c.BucketName),
		slog.String("region", c.Region),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.Bool("secret_key_set", c.SecretKey != ""),
		slog.String("endpoint", c.Endpoint),
		slog.Bool("webhook_url_set", c.WebhookURL != ""),
		slog.Bool("dry_run", c.DryRun),
	)
}
