package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gobet-deribit/pkg/config"
	"github.com/betbot/gobet-deribit/pkg/logger"
	"github.com/betbot/gobet-deribit/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	envPath := flag.String("env", ".env", ".env 文件路径（不存在时忽略）")
	runDemo := flag.Bool("demo", true, "执行下单/改单/撤单/查询演示流程")
	withStream := flag.Bool("stream", false, "订阅 ticker 行情直到收到退出信号（覆盖配置）")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *withStream {
		cfg.Stream.Enabled = true
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	cfg.ApplyProxyEnv()

	if err := run(cfg, *runDemo); err != nil {
		logrus.Errorf("退出: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, runDemo bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shut := shutdown.NewManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shut.Shutdown(shutdownCtx)
	}()

	a, err := setup(ctx, cfg, shut)
	if err != nil {
		return err
	}
	logrus.WithField("base_url", a.client.BaseURL()).Info("Deribit 客户端已就绪")

	if runDemo {
		runDemoSequence(ctx, a)
		a.summarize(ctx)
	}

	if !cfg.Stream.Enabled {
		return nil
	}
	ms, err := startStream(ctx, cfg)
	if err != nil {
		return err
	}
	shut.OnShutdown("market_stream", func(context.Context) error { return ms.Close() })

	logrus.Info("按 Ctrl+C 退出...")
	<-ctx.Done()
	return nil
}
