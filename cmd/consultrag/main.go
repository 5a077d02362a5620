package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/config"
	"github.com/xxxsen/consultrag/internal/handler"
	"github.com/xxxsen/consultrag/internal/job"
	"github.com/xxxsen/consultrag/internal/middleware"
	"github.com/xxxsen/consultrag/internal/schedule"
	"github.com/xxxsen/consultrag/internal/source"
)

func main() {
	var (
		configPath string
		envFile    string
		userID     string
	)

	rootCmd := &cobra.Command{
		Use:           "consultrag",
		Short:         "consultation assistant backed by retrieval augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user scope, defaults to default_user")

	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(configPath, envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return fn(ctx, a, args)
		}
	}
	scope := func(a *app) string {
		if userID != "" {
			return userID
		}
		return a.cfg.DefaultUser
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the http server",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			return runServer(ctx, a)
		}),
	}

	var recordsPath string
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "index consultation records from a json file or the configured source",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			user, loadKey := scope(a), scope(a)
			src := a.source
			if recordsPath != "" {
				fileSrc, err := source.New("file", map[string]interface{}{"path": recordsPath})
				if err != nil {
					return err
				}
				defer fileSrc.Close()
				src = fileSrc
				if userID == "" {
					loadKey = source.DefaultUser
				}
			}
			if src == nil {
				return fmt.Errorf("--records is required when no source is configured")
			}
			records, err := src.Load(ctx, loadKey)
			if err != nil {
				return err
			}
			return printJSON(a.pool.Get(user).IndexBatch(ctx, records))
		}),
	}
	indexCmd.Flags().StringVar(&recordsPath, "records", "", "json file with consultation records")

	var displayName string
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "answer one question against the indexed records",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return printJSON(a.pool.Get(scope(a)).AnswerQuestion(ctx, args[0], displayName))
		}),
	}
	askCmd.Flags().StringVar(&displayName, "name", "", "display name used to address the user")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "show index statistics",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			stats, err := a.pool.Get(scope(a)).Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "remove every indexed passage of the user",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			return a.pool.Get(scope(a)).Clear(ctx)
		}),
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "export or import the vector index",
	}
	snapshotRun := func(export bool) func(context.Context, *app, []string) error {
		return func(ctx context.Context, a *app, args []string) error {
			if a.snapshots == nil {
				return fmt.Errorf("snapshot store is not configured")
			}
			svc := a.pool.Get(scope(a))
			var (
				count int
				err   error
			)
			if export {
				count, err = a.snapshots.Export(ctx, svc, args[0])
			} else {
				count, err = a.snapshots.Import(ctx, svc, args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"name": args[0], "count": count})
		}
	}
	snapshotCmd.AddCommand(
		&cobra.Command{Use: "export <name>", Short: "write the index to the snapshot store", Args: cobra.ExactArgs(1), RunE: withApp(snapshotRun(true))},
		&cobra.Command{Use: "import <name>", Short: "load the index from the snapshot store", Args: cobra.ExactArgs(1), RunE: withApp(snapshotRun(false))},
	)

	rootCmd.AddCommand(serveCmd, indexCmd, askCmd, statsCmd, clearCmd, snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func bootstrap(configPath, envFile string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return newApp(cfg)
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info("starting server",
		zap.String("addr", addr),
		zap.String("store", cfg.Store.Type),
		zap.Bool("source", a.source != nil),
		zap.Bool("snapshot", a.snapshots != nil))

	var reindexer handler.Reindexer
	if a.reindex != nil {
		reindexer = a.reindex
	}
	deps := handler.RouterDeps{
		Assistant:     handler.NewAssistantHandler(a.pool, reindexer, a.snapshots),
		DefaultUser:   cfg.DefaultUser,
		AskRateWindow: cfg.Server.AskRateWindow(),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if a.reindex != nil && cfg.Reindex.Cron != "" {
		if err := scheduler.AddJob(a.reindex, cfg.Reindex.Cron); err != nil {
			return fmt.Errorf("schedule reindex: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if a.reindex != nil && cfg.Reindex.OnStart {
		go func() {
			var err error
			if cfg.Reindex.Cron != "" {
				err = scheduler.RunNow(job.ReindexJobName)
			} else {
				err = a.reindex.Run(ctx)
			}
			if err != nil && !errors.Is(err, schedule.ErrJobRunning) {
				logutil.GetLogger(ctx).Error("startup reindex failed", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
