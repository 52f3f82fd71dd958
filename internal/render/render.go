package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dushixiang/httping/internal/models"
)

var (
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9FAFB"))
	bold   = lipgloss.NewStyle().Bold(true)
)

// Renderer 终端输出渲染器，colors 为 false 时输出纯文本
type Renderer struct {
	colors bool
}

// NewRenderer 创建渲染器
func NewRenderer(colors bool) *Renderer {
	return &Renderer{colors: colors}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.colors {
		return text
	}
	return s.Render(text)
}

// CheckLine 渲染单次检测结果行
// 格式: [15:04:05] ✓ name | 200 | 123ms
func (r *Renderer) CheckLine(check models.HealthCheck) string {
	mark := r.style(green, "✓")
	if !check.Success {
		mark = r.style(red, "✗")
	}

	line := fmt.Sprintf("[%s] %s %s | %s | %s",
		check.Timestamp.Format("15:04:05"),
		mark,
		r.style(bold, check.Target),
		r.StatusCode(check.StatusCode),
		r.responseTime(check.ResponseTime.Milliseconds()))

	if check.Error != "" {
		line += "\n    Error: " + r.style(red, check.Error)
	}
	return line
}

// StatusCode 按状态码区间着色，0 表示未收到响应
func (r *Renderer) StatusCode(code int) string {
	switch {
	case code == 0:
		return r.style(red, "ERROR")
	case code >= 200 && code < 300:
		return r.style(green, fmt.Sprintf("%d", code))
	case code >= 300 && code < 400:
		return r.style(yellow, fmt.Sprintf("%d", code))
	default:
		return r.style(red, fmt.Sprintf("%d", code))
	}
}

// responseTime 按耗时着色
func (r *Renderer) responseTime(ms int64) string {
	text := fmt.Sprintf("%dms", ms)
	switch {
	case ms <= 200:
		return r.style(green, text)
	case ms <= 1000:
		return r.style(yellow, text)
	default:
		return r.style(red, text)
	}
}

// PingTime 单 URL ping 模式的耗时着色，阈值比监控模式更严格
func (r *Renderer) PingTime(ms int64) string {
	text := fmt.Sprintf("%dms", ms)
	switch {
	case ms <= 50:
		return r.style(green, text)
	case ms <= 200:
		return r.style(yellow, text)
	default:
		return r.style(red, text)
	}
}

// Mark 成功/失败标记
func (r *Renderer) Mark(success bool) string {
	if success {
		return r.style(green, "✓")
	}
	return r.style(red, "✗")
}

// SummaryTable 渲染所有目标的状态汇总表格
func (r *Renderer) SummaryTable(snapshots []models.TargetHealth) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-20s %-10s %-10s %-15s %-10s\n",
		"Target", "Status", "Uptime", "Avg Response", "Health")
	b.WriteString(strings.Repeat("─", 75))
	b.WriteByte('\n')

	for _, h := range snapshots {
		fmt.Fprintf(&b, "%-20s %-10s %-9.1f%% %-14dms %-10.1f\n",
			h.Name,
			r.status(h.CurrentStatus),
			h.UptimePercentage,
			h.AvgResponseTime.Milliseconds(),
			h.HealthScore*100.0)
	}

	return b.String()
}

func (r *Renderer) status(status models.HealthStatus) string {
	switch status {
	case models.StatusHealthy:
		return r.style(green, "Healthy")
	case models.StatusDegraded:
		return r.style(yellow, "Degraded")
	case models.StatusUnhealthy:
		return r.style(red, "Unhealthy")
	default:
		return r.style(white, "Unknown")
	}
}
