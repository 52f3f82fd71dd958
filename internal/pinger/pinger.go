package pinger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dushixiang/httping/internal/render"
	"github.com/dushixiang/httping/pkg/useragent"
)

// Options 单 URL ping 模式的选项
type Options struct {
	URL       string
	Count     uint64 // 0 表示不限次数
	Interval  time.Duration
	Timeout   time.Duration
	Method    string
	Headers   []string // "Key: Value" 形式
	UserAgent string
	Quiet     bool
	Verbose   bool
	StatsOnly bool
	JSON      bool
	NoColor   bool
}

// Result 单次 ping 结果
type Result struct {
	Sequence     uint64        `json:"sequence"`
	URL          string        `json:"url"`
	StatusCode   int           `json:"statusCode,omitempty"`
	ResponseTime time.Duration `json:"responseTime"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Statistics 客户端统计
type Statistics struct {
	TotalRequests      uint64        `json:"totalRequests"`
	SuccessfulRequests uint64        `json:"successfulRequests"`
	FailedRequests     uint64        `json:"failedRequests"`
	SuccessRate        float64       `json:"successRate"`
	MinResponseTime    time.Duration `json:"minResponseTime"`
	MaxResponseTime    time.Duration `json:"maxResponseTime"`
	AvgResponseTime    time.Duration `json:"avgResponseTime"`
	TotalTime          time.Duration `json:"totalTime"`

	totalResponseTime time.Duration
}

// Pinger 顺序的请求-休眠循环，带客户端统计
type Pinger struct {
	client   *http.Client
	opts     Options
	renderer *render.Renderer
	out      io.Writer
	stats    Statistics
	sequence uint64
}

// NewPinger 创建 Pinger
func NewPinger(opts Options) *Pinger {
	if opts.Method == "" {
		opts.Method = "GET"
	}
	opts.Method = strings.ToUpper(opts.Method)

	return &Pinger{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		renderer: render.NewRenderer(!opts.NoColor && !opts.JSON),
		out:      os.Stdout,
	}
}

// SetOutput 重定向输出（仅用于测试）
func (p *Pinger) SetOutput(w io.Writer) {
	p.out = w
}

// Stats 返回当前统计快照
func (p *Pinger) Stats() Statistics {
	return p.stats
}

// Run 顺序执行 ping 循环，直到达到次数上限或 ctx 取消，
// 结束时打印统计信息。
func (p *Pinger) Run(ctx context.Context) error {
	start := time.Now()

	for p.opts.Count == 0 || p.sequence < p.opts.Count {
		if ctx.Err() != nil {
			break
		}

		result := p.pingOnce(ctx)
		p.updateStats(result)
		p.printResult(result)

		if p.opts.Count != 0 && p.sequence >= p.opts.Count {
			break
		}

		select {
		case <-ctx.Done():
		case <-time.After(p.opts.Interval):
		}
	}

	p.stats.TotalTime = time.Since(start)
	p.printStatistics()
	return nil
}

func (p *Pinger) pingOnce(ctx context.Context) Result {
	p.sequence++
	result := Result{
		Sequence:  p.sequence,
		URL:       p.opts.URL,
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, p.opts.Method, p.opts.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request failed: %v", err)
		return result
	}

	// 自定义 User-Agent 优先，否则随机选取
	ua := p.opts.UserAgent
	if ua == "" {
		ua = useragent.Random()
	}
	req.Header.Set("User-Agent", ua)

	for _, header := range p.opts.Headers {
		if key, value, ok := strings.Cut(header, ":"); ok {
			req.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	result.ResponseTime = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}

// updateStats 维护精确的累计响应时间，读取时才求平均
func (p *Pinger) updateStats(result Result) {
	s := &p.stats
	s.TotalRequests++

	if result.Success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
	}
	s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100.0

	if s.TotalRequests == 1 || result.ResponseTime < s.MinResponseTime {
		s.MinResponseTime = result.ResponseTime
	}
	if result.ResponseTime > s.MaxResponseTime {
		s.MaxResponseTime = result.ResponseTime
	}

	s.totalResponseTime += result.ResponseTime
	s.AvgResponseTime = s.totalResponseTime / time.Duration(s.TotalRequests)
}

func (p *Pinger) printResult(result Result) {
	if p.opts.JSON {
		data, _ := json.Marshal(result)
		fmt.Fprintln(p.out, string(data))
		return
	}

	if p.opts.StatsOnly {
		return
	}

	mark := p.renderer.Mark(result.Success)
	status := p.renderer.StatusCode(result.StatusCode)
	elapsed := p.renderer.PingTime(result.ResponseTime.Milliseconds())

	if p.opts.Quiet {
		fmt.Fprintf(p.out, "%s %s %s\n", mark, status, elapsed)
		return
	}

	fmt.Fprintf(p.out, "PING %s [%s]: seq=%d status=%s time=%s\n",
		p.opts.URL, mark, result.Sequence, status, elapsed)

	if p.opts.Verbose && result.Error != "" {
		fmt.Fprintf(p.out, "  Error: %s\n", result.Error)
	}
}

func (p *Pinger) printStatistics() {
	if p.opts.JSON {
		data, _ := json.Marshal(p.stats)
		fmt.Fprintln(p.out, string(data))
		return
	}

	fmt.Fprintf(p.out, "\n--- %s ping statistics ---\n", p.opts.URL)
	fmt.Fprintf(p.out, "%d packets transmitted, %d received, %.1f%% packet loss\n",
		p.stats.TotalRequests,
		p.stats.SuccessfulRequests,
		100.0-p.stats.SuccessRate)

	if p.stats.SuccessfulRequests > 0 {
		fmt.Fprintf(p.out, "round-trip min/avg/max = %d/%d/%d ms\n",
			p.stats.MinResponseTime.Milliseconds(),
			p.stats.AvgResponseTime.Milliseconds(),
			p.stats.MaxResponseTime.Milliseconds())
	}
}
