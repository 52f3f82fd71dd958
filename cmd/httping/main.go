package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/monitor"
	"github.com/dushixiang/httping/internal/pinger"
	"github.com/dushixiang/httping/pkg/logx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) *zap.Logger {
	return logx.New(&logx.Config{
		Level:      "info",
		File:       cfg.Settings.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "httping",
		Short:   "HTTP 监控与测速工具",
		Long:    "多目标 HTTP 健康监控、告警与单 URL 测速工具",
		Version: "0.2.0",
	}

	root.AddCommand(newMonitorCmd())
	root.AddCommand(newPingCmd())
	root.AddCommand(newInitCmd())
	return root
}

// signalContext 返回收到中断信号时取消的 context
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newMonitorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "按配置文件监控多个目标",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signalContext()
			defer cancel()

			return monitor.NewMonitor(logger, cfg).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newPingCmd() *cobra.Command {
	var (
		count     uint64
		interval  float64
		timeout   float64
		method    string
		headers   []string
		userAgent string
		quiet     bool
		verbose   bool
		statsOnly bool
		noColor   bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "ping <url>",
		Short: "对单个 URL 执行顺序测速",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			p := pinger.NewPinger(pinger.Options{
				URL:       args[0],
				Count:     count,
				Interval:  time.Duration(interval * float64(time.Second)),
				Timeout:   time.Duration(timeout * float64(time.Second)),
				Method:    method,
				Headers:   headers,
				UserAgent: userAgent,
				Quiet:     quiet,
				Verbose:   verbose,
				StatsOnly: statsOnly,
				NoColor:   noColor,
				JSON:      jsonOut,
			})
			return p.Run(ctx)
		},
	}

	cmd.Flags().Uint64VarP(&count, "count", "c", 0, "请求次数，0 表示不限")
	cmd.Flags().Float64VarP(&interval, "interval", "i", 1.0, "请求间隔（秒）")
	cmd.Flags().Float64VarP(&timeout, "timeout", "t", 10.0, "请求超时（秒）")
	cmd.Flags().StringVarP(&method, "method", "m", "GET", "HTTP 方法")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "自定义请求头，可重复使用")
	cmd.Flags().StringVarP(&userAgent, "user-agent", "u", "", "自定义 User-Agent")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "精简输出")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出错误详情")
	cmd.Flags().BoolVarP(&statsOnly, "stats-only", "s", false, "仅输出最终统计")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "禁用彩色输出")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON 格式输出")
	return cmd
}

func newInitCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "生成示例配置文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Printf("✅ Example configuration written to: %s\n", output)
			fmt.Printf("📝 Edit the file and run: httping monitor -c %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "httping.yml", "配置文件输出路径")
	return cmd
}
