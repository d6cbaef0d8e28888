// 跨所对冲机器人入口。
//
// 用法:
//
//	bot -config config.yaml
//	bot -config config.yaml -ticker ETH -margin 200 -hold-time 10m
//	bot -store-secrets   # 把环境变量里的凭证写入 secretstore 后退出
//
// 凭证查找顺序：环境变量（.env 可选）优先，secretstore（badger）兜底。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/gohedge/internal/exchange"
	"github.com/betbot/gohedge/internal/exchange/grvt"
	"github.com/betbot/gohedge/internal/exchange/lighter"
	"github.com/betbot/gohedge/internal/hedge"
	"github.com/betbot/gohedge/internal/history"
	"github.com/betbot/gohedge/internal/notify"
	"github.com/betbot/gohedge/internal/status"
	"github.com/betbot/gohedge/pkg/config"
	"github.com/betbot/gohedge/pkg/logger"
	"github.com/betbot/gohedge/pkg/persistence"
	"github.com/betbot/gohedge/pkg/ratelimit"
	"github.com/betbot/gohedge/pkg/secretstore"
	"github.com/betbot/gohedge/pkg/shutdown"
)

// secretKeys secretstore 管理的全部凭证键
var secretKeys = []string{
	"GRVT_API_KEY",
	"GRVT_PRIVATE_KEY",
	"GRVT_TRADING_ACCOUNT_ID",
	"LIGHTER_API_KEY_PRIVATE_KEY",
	"LIGHTER_ACCOUNT_INDEX",
	"LIGHTER_API_KEY_INDEX",
	"LARK_TOKEN",
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID",
}

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "配置文件路径")
		envFile      = flag.String("env-file", ".env", "环境变量文件（不存在则忽略）")
		ticker       = flag.String("ticker", "", "覆盖配置中的 ticker")
		margin       = flag.String("margin", "", "覆盖配置中的 margin（USDC）")
		holdTime     = flag.Duration("hold-time", 0, "覆盖配置中的持仓时长")
		storeSecrets = flag.Bool("store-secrets", false, "把环境变量中的凭证写入 secretstore 后退出")
	)
	flag.Parse()

	// .env 是可选的：没有就全部走系统环境变量 / secretstore
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", *envFile, err)
		os.Exit(1)
	}

	if *storeSecrets {
		if err := runStoreSecrets(); err != nil {
			fmt.Fprintf(os.Stderr, "写入 secretstore 失败: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *ticker, *margin, *holdTime)

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Errorf("启动失败: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := shutdown.NewManager()

	// 凭证查找：环境变量优先，secretstore 兜底
	store, err := openSecretStore(true)
	if err != nil {
		return err
	}
	if store != nil {
		sm.OnShutdown(func(context.Context) { store.Close() })
	}
	lookup := buildLookup(store)

	limits := ratelimit.NewManager()

	grvtCreds, err := grvt.CredentialsFromEnv(lookup)
	if err != nil {
		return err
	}
	maker, err := grvt.New(grvtCreds, cfg.Grvt, limits)
	if err != nil {
		return err
	}
	sm.OnShutdown(func(context.Context) { maker.Close() })

	lighterCreds, err := lighter.CredentialsFromEnv(lookup)
	if err != nil {
		return err
	}
	hedger, err := lighter.New(lighterCreds, cfg.Lighter, limits)
	if err != nil {
		return err
	}
	sm.OnShutdown(func(context.Context) { hedger.Close() })

	// 对冲腿盘口走 WebSocket（REST 兜底），提前起流
	if attrs, err := hedger.ContractAttributes(ctx, cfg.Hedge.Ticker); err == nil {
		if err := hedger.StartBookStream(ctx, attrs.ContractID); err != nil {
			logger.Warnf("启动盘口流失败（将走 REST）: %v", err)
		}
	} else {
		logger.Warnf("预取对冲腿合约属性失败: %v", err)
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.DBPath)
		if err != nil {
			return err
		}
		sm.OnShutdown(func(context.Context) { hist.Close() })
	}

	engine := hedge.New(hedge.Options{
		Config:      &cfg.Hedge,
		Maker:       maker,
		Hedger:      hedger,
		Notifier:    notify.FromEnv(lookup),
		History:     hist,
		Persistence: persistence.NewJSONFileService(cfg.PersistenceDir),
	})

	if cfg.Status.Enabled {
		status.New(cfg.Status.ListenAddr, engine, hist).StartAsync(ctx)
	}

	runErr := engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sm.Shutdown(shutdownCtx)
	return runErr
}

func applyOverrides(cfg *config.Config, ticker, margin string, holdTime time.Duration) {
	if ticker != "" {
		cfg.Hedge.Ticker = strings.ToUpper(ticker)
	}
	if margin != "" {
		cfg.Hedge.Margin = config.D(margin)
	}
	if holdTime > 0 {
		cfg.Hedge.HoldTime.Duration = holdTime
	}
}

// openSecretStore 打开 badger 凭证库。SECRET_STORE_PATH 未设置时返回 nil
// （纯环境变量模式）。加密密钥来自 SECRET_STORE_KEY（hex，32 字节）。
func openSecretStore(readOnly bool) (*secretstore.Store, error) {
	path := strings.TrimSpace(os.Getenv("SECRET_STORE_PATH"))
	if path == "" {
		return nil, nil
	}
	key, err := secretstore.ParseEncryptionKey(os.Getenv("SECRET_STORE_KEY"))
	if err != nil {
		return nil, err
	}
	return secretstore.Open(secretstore.OpenOptions{
		Path:          path,
		EncryptionKey: key,
		ReadOnly:      readOnly,
	})
}

// buildLookup 组装凭证查找函数：环境变量优先，secretstore 兜底。
// 环境变量键按「首段=venue 其余=field」映射到库内键，
// 例如 GRVT_API_KEY -> cred:grvt:api_key。
func buildLookup(store *secretstore.Store) exchange.SecretLookup {
	return func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		if store == nil {
			return "", false
		}
		venue, field, ok := strings.Cut(key, "_")
		if !ok {
			return "", false
		}
		v, found, err := store.GetString(secretstore.CredentialKey(venue, field))
		if err != nil {
			logger.Warnf("secretstore 读取 %s 失败: %v", key, err)
			return "", false
		}
		return v, found
	}
}

// runStoreSecrets 把环境变量中的已知凭证写入 secretstore
func runStoreSecrets() error {
	store, err := openSecretStore(false)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("未设置 SECRET_STORE_PATH")
	}
	defer store.Close()

	stored := 0
	for _, key := range secretKeys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		venue, field, ok := strings.Cut(key, "_")
		if !ok {
			continue
		}
		if err := store.SetString(secretstore.CredentialKey(venue, field), v); err != nil {
			return err
		}
		stored++
	}
	fmt.Printf("已写入 %d 个凭证\n", stored)
	return nil
}
