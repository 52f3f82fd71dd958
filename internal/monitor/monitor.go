package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dushixiang/httping/internal/alerter"
	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/health"
	"github.com/dushixiang/httping/internal/prober"
	"github.com/dushixiang/httping/internal/render"
	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// summaryInterval 状态汇总表的打印周期
const summaryInterval = 30 * time.Second

// Monitor 多目标监控引擎：每个目标一个独立的轮询循环，
// 外加一个周期性打印状态汇总的 Reporter。
type Monitor struct {
	logger   *zap.Logger
	cfg      *config.Config
	prober   *prober.Prober
	registry *health.Registry
	alerter  *alerter.Alerter
	renderer *render.Renderer
	out      io.Writer
}

// NewMonitor 创建监控引擎
func NewMonitor(logger *zap.Logger, cfg *config.Config) *Monitor {
	return &Monitor{
		logger:   logger,
		cfg:      cfg,
		prober:   prober.NewProber(),
		registry: health.NewRegistry(cfg.Targets),
		alerter:  alerter.NewAlerter(logger, cfg.Alerts),
		renderer: render.NewRenderer(cfg.Settings.EnableColors),
		out:      os.Stdout,
	}
}

// SetOutput 重定向检测结果和汇总表的输出（仅用于测试）
func (m *Monitor) SetOutput(w io.Writer) {
	m.out = w
}

// Registry 返回健康状态注册表
func (m *Monitor) Registry() *health.Registry {
	return m.registry
}

// Run 启动所有轮询循环和 Reporter，阻塞直到 ctx 取消且全部循环退出，
// 最后打印恰好一次最终汇总。
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("启动 HTTP 监控",
		zap.Int("targets", len(m.cfg.Targets)),
		zap.Int("alerts", len(m.cfg.Alerts)))

	fmt.Fprintf(m.out, "🚀 Starting HTTP monitor for %d targets...\n", len(m.cfg.Targets))

	var wg conc.WaitGroup
	for _, target := range m.cfg.Targets {
		target := target
		wg.Go(func() {
			m.superviseTarget(ctx, target)
		})
	}

	// Reporter 独立于轮询循环，固定周期读取快照
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %ds", int(summaryInterval.Seconds())), func() {
		m.printSummary("📊 Status Summary:")
	}); err != nil {
		return fmt.Errorf("schedule status summary: %w", err)
	}
	c.Start()

	wg.Wait()

	// 等待已触发的汇总任务执行完毕再打印最终汇总
	<-c.Stop().Done()

	m.printSummary("🏁 Final Summary:")
	m.logger.Info("监控已停止")
	return nil
}

// superviseTarget 监督单个目标的轮询循环：
// 循环 panic 时记录日志并按退避间隔重启，不影响其他目标。
func (m *Monitor) superviseTarget(ctx context.Context, target config.Target) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for ctx.Err() == nil {
		recovered := panics.Try(func() {
			m.pollLoop(ctx, target)
		})
		if recovered == nil {
			return
		}

		delay := b.Duration()
		m.logger.Error("轮询循环异常退出，稍后重启",
			zap.String("target", target.Name),
			zap.Any("panic", recovered.Value),
			zap.Duration("restartAfter", delay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// pollLoop 单个目标的轮询循环。每轮严格按顺序执行：
// 探测 -> 更新健康状态 -> 评估告警 -> 输出结果 -> 补足间隔后进入下一轮。
// 取消信号只在探测前和休眠前检查，进行中的请求会先完成。
func (m *Monitor) pollLoop(ctx context.Context, target config.Target) {
	interval := target.Interval()
	aggregate := m.registry.Get(target.Name)

	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		check := m.prober.Check(ctx, target)

		// 取消会中断进行中的请求，此时的结果不再计入统计
		if ctx.Err() != nil {
			return
		}

		snapshot := aggregate.Apply(check)
		m.alerter.Evaluate(target, check, snapshot)
		fmt.Fprintln(m.out, m.renderer.CheckLine(check))

		elapsed := time.Since(start)
		if sleep := interval - elapsed; sleep > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}
}

// printSummary 打印状态汇总表，只短暂持有各目标的读锁
func (m *Monitor) printSummary(title string) {
	fmt.Fprintf(m.out, "\n%s\n%s\n", title, m.renderer.SummaryTable(m.registry.Snapshots()))
}
