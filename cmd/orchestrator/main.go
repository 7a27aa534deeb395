package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/filevine-s3-sync/internal/config"
	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/orchestrator"
	"github.com/openmined/filevine-s3-sync/internal/origin"
	"github.com/openmined/filevine-s3-sync/internal/projectmap"
	"github.com/openmined/filevine-s3-sync/internal/reconcile"
	"github.com/openmined/filevine-s3-sync/internal/version"
	"github.com/openmined/filevine-s3-sync/internal/webhook"
)

var dotenvLoaded bool

var rootCmd = &cobra.Command{
	Use:     "filevine-sync",
	Short:   "Filevine / S3 three-way sync orchestrator",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(cmd)
		if err != nil {
			cmd.SilenceUsage = false
			return err
		}

		slog.Info("orchestrator config", "dotenvLoaded", dotenvLoaded, "config", cfg.LogValue())

		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("config", "f", "", "Path to config file (e.g., config.yaml)")
	rootCmd.Flags().StringP("zdrive", "z", "", "Local mirror root directory (ZDriveRoot)")
	rootCmd.Flags().StringP("s3", "s", "", "Object store path, s3://<bucket>[/prefix] (S3Path)")
	rootCmd.Flags().StringP("bind", "b", config.DefaultWebhookBindAddr, "Address to bind the webhook router")
	rootCmd.Flags().Bool("dry-run", false, "Run discovery and a full pass without writing to S3 or Origin")

	if err := godotenv.Load(".env"); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Println("Error loading .env file", err)
			os.Exit(1)
		}
	} else {
		dotenvLoaded = true
	}
}

func main() {
	slog.SetDefault(slog.New(setupHandler()))
	showBanner()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupHandler() slog.Handler {
	switch os.Getenv("FILEVINE_SYNC_ENV") {
	case "PROD", "STAGE":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			AddSource:  true,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
		})
	}
}

func showBanner() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	fmt.Println(cyan("filevine-s3-sync") + " " + version.Short())
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if cmd.Flag("config").Changed {
		v.SetConfigFile(cmd.Flag("config").Value.String())
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FILEVINE_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindWithDefaults(v, cmd)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cmd.Flag("config").Changed && !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindWithDefaults(v *viper.Viper, cmd *cobra.Command) {
	v.BindPFlag("zdrive_root", cmd.Flags().Lookup("zdrive"))
	v.BindPFlag("s3_path", cmd.Flags().Lookup("s3"))
	v.BindPFlag("webhook_bind_addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))

	v.SetDefault("s3_root_prefix", config.DefaultS3RootPrefix)
	v.SetDefault("org_marker", "")
	v.SetDefault("org_folder_name", config.DefaultOrgFolderName)
	v.SetDefault("root_folder_id", "")
	v.SetDefault("require_resolved", config.DefaultRequireResolved)
	v.SetDefault("enable_origin_upload", config.DefaultEnableOriginUpload)
	v.SetDefault("project_map_path", config.DefaultProjectMapPath)
	v.SetDefault("document_keys_path", config.DefaultDocumentKeysPath)
	v.SetDefault("poll_interval_seconds", config.DefaultPollInterval)
	v.SetDefault("webhook_bind_addr", config.DefaultWebhookBindAddr)

	// Origin credentials — no CLI flags; read from FILEVINE_SYNC_* environment
	// variables or the config file.
	v.SetDefault("api_key", "")
	v.SetDefault("api_secret", "")
	v.SetDefault("user_id", "")
	v.SetDefault("org_id", "")
	v.SetDefault("session_url", "")
	v.SetDefault("webhook_url", "")

	// Object store credentials.
	v.SetDefault("bucket_name", "")
	v.SetDefault("region", "")
	v.SetDefault("access_key", "")
	v.SetDefault("secret_key", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("use_accelerate", false)
}

func run(ctx context.Context, cfg *config.Config) error {
	s3Store, err := objectstore.NewFromConfig(ctx, &objectstore.Config{
		BucketName:    cfg.BucketName,
		Region:        cfg.Region,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		Endpoint:      cfg.Endpoint,
		UseAccelerate: cfg.UseAccelerate,
	})
	if err != nil {
		return fmt.Errorf("build object store client: %w", err)
	}

	var store objectstore.Store = s3Store
	if cfg.DryRun {
		slog.Warn("dry-run mode: no object-store or origin writes will be performed")
		store = objectstore.NewDryRunStore(s3Store)
	}

	var originClient *origin.Client
	if cfg.SessionURL != "" && cfg.APIKey != "" && cfg.APISecret != "" {
		originClient = origin.New(&origin.Config{
			APIKey:             cfg.APIKey,
			APISecret:          cfg.APISecret,
			UserID:             cfg.UserID,
			OrgID:              cfg.OrgID,
			SessionURL:         cfg.SessionURL,
			WebhookURL:         cfg.WebhookURL,
			RootFolderID:       cfg.RootFolderID,
			RequireResolved:    cfg.RequireResolved,
			EnableOriginUpload: cfg.EnableOriginUpload,
		})
	} else {
		slog.Warn("origin credentials not fully configured, origin mirroring and webhook refresh are disabled")
	}

	var recOrigin reconcile.OriginClient
	if originClient != nil {
		if cfg.DryRun {
			recOrigin = origin.NewDryRunClient(originClient)
		} else {
			recOrigin = originClient
		}
	}
	reconciler := reconcile.New(store, recOrigin, reconcile.Config{
		EnableOriginUpload: cfg.EnableOriginUpload,
		RequireResolved:    cfg.RequireResolved,
		RootFolderID:       cfg.RootFolderID,
	})

	projectMap, err := projectmap.Load(cfg.ProjectMapPath)
	if err != nil {
		return fmt.Errorf("load project map: %w", err)
	}

	orc := orchestrator.New(cfg, store, originClient, reconciler, projectMap)

	docKeys, err := webhook.NewDocumentKeyStore(cfg.DocumentKeysPath)
	if err != nil {
		return fmt.Errorf("load document key store: %w", err)
	}

	var originDocs webhook.OriginDocuments
	if originClient != nil {
		originDocs = originClient
	}
	handler := webhook.NewHandler(orc, orc, originDocs, store, docKeys)
	httpServer := &http.Server{
		Addr:    cfg.WebhookBindAddr,
		Handler: webhook.NewRouter(handler),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orc.Run(ctx)
	})

	g.Go(func() error {
		slog.Info("webhook router listening", "addr", cfg.WebhookBindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	defer slog.Info("Bye!")
	return g.Wait()
}
