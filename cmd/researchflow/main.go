// =============================================================================
// ResearchFlow 主入口
// =============================================================================
// 研究流水线编排引擎的命令行入口
//
// 使用方法:
//
//	researchflow run "query"                        # 执行一次研究流水线
//	researchflow run --config config.yaml "query"   # 指定配置文件
//	researchflow history                            # 查看最近运行记录
//	researchflow version                            # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/researchflow/config"
	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/internal/runstore"
	"github.com/BaSui01/researchflow/research"
	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runPipeline(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🚀 run 命令
// =============================================================================

func runPipeline(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: researchflow run [--config path] \"query\"")
		os.Exit(1)
	}

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	logger.Info("starting researchflow",
		zap.String("version", Version),
		zap.String("query", query))

	// 缓存后端
	store := openCacheStore(cfg, logger)
	var memoizer *cache.Memoizer
	if store != nil {
		defer store.Close()
		memoizer = cache.NewMemoizer(store, logger)
	}

	// 协作者：默认离线实现，检索侧加限速
	collaborators := research.OfflineCollaborators()
	collaborators.Searcher = research.NewRateLimitedSearcher(
		collaborators.Searcher, cfg.Gather.SearchRPS, cfg.Gather.SearchBurst)

	engine, err := research.NewPipeline(collaborators,
		cfg.EngineConfig(), cfg.RetryConfig(), cfg.GatherConfig(), memoizer, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to assemble pipeline: %v\n", err)
		os.Exit(1)
	}

	if store != nil {
		engine.SetCacheStore(store)
	}
	if cfg.Metrics.Enabled {
		engine.SetMetrics(metrics.NewCollector(cfg.Metrics.Namespace, nil, logger))
	}

	state, err := engine.Run(context.Background(), query)
	if err != nil {
		// 唯一的硬失败：无法构造初始状态
		fmt.Fprintf(os.Stderr, "Run rejected: %v\n", err)
		os.Exit(1)
	}

	saveRunRecord(cfg, state, logger)

	output, err := types.MarshalState(state)
	if err != nil {
		logger.Error("failed to render final state", zap.Error(err))
	} else {
		fmt.Println(string(output))
	}

	// 降级完成的运行同样以 0 退出；结果判定交给状态字段
	logger.Info("run finished",
		zap.Bool("completed", state.WorkflowCompleted),
		zap.Bool("incomplete", state.Incomplete),
		zap.Int("errors", state.ErrorCount()))
}

// =============================================================================
// 📜 history 命令
// =============================================================================

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 10, "Number of records to show")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	store, err := runstore.New(cfg.RunStoreConfig(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run history: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}
	for _, rec := range records {
		status := "partial"
		if rec.WorkflowCompleted {
			status = "completed"
		}
		fmt.Printf("%s  %-9s  errors=%-2d  %s  %q\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			status, rec.ErrorCount, rec.Duration.Round(time.Millisecond), rec.Query)
	}
}

// =============================================================================
// 🔧 装配辅助
// =============================================================================

func loadConfigAndLogger(configPath string) (*config.Config, *zap.Logger) {
	loader := config.NewLoader().WithValidator(func(c *config.Config) error {
		return c.Validate()
	})
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	return cfg, initLogger(cfg.Log)
}

// openCacheStore builds the configured cache backend. Any failure degrades
// to running without a cache.
func openCacheStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	switch cfg.Cache.Backend {
	case "disk":
		store, err := cache.NewDiskStore(cfg.DiskCacheConfig(), logger)
		if err != nil {
			logger.Warn("disk cache unavailable, running without cache", zap.Error(err))
			return nil
		}
		return store
	case "redis":
		store, err := cache.NewRedisStore(cfg.RedisCacheConfig(), logger)
		if err != nil {
			logger.Warn("redis cache unavailable, running without cache", zap.Error(err))
			return nil
		}
		return store
	default:
		return nil
	}
}

// saveRunRecord persists the run summary; failures never affect the run.
func saveRunRecord(cfg *config.Config, state *types.PipelineState, logger *zap.Logger) {
	if !cfg.RunStore.Enabled {
		return
	}
	store, err := runstore.New(cfg.RunStoreConfig(), logger)
	if err != nil {
		logger.Warn("run store unavailable, history not recorded", zap.Error(err))
		return
	}
	defer store.Close()

	if _, err := store.Save(context.Background(), state); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("ResearchFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`ResearchFlow - research pipeline orchestration engine

Usage:
  researchflow <command> [options]

Commands:
  run       Execute the research pipeline for a query
  history   Show recent run records
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)

Options for 'history':
  --config <path>   Path to configuration file (YAML)
  --limit <n>       Number of records to show (default 10)

Examples:
  researchflow run "perovskite solar cell stability"
  researchflow run --config /etc/researchflow/config.yaml "protein folding"
  researchflow history --limit 5
  researchflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if !cfg.EnableCaller {
		zapConfig.DisableCaller = true
	}

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
