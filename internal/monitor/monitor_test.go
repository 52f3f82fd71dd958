package monitor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/models"
	"go.uber.org/zap"
)

// syncBuffer 多个轮询循环并发写入同一输出缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(targets ...config.Target) *config.Config {
	return &config.Config{
		Targets: targets,
		Settings: config.Settings{
			DefaultInterval: 60,
			DefaultTimeout:  10,
			EnableColors:    false,
		},
	}
}

func TestMonitorRun(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(
		config.Target{Name: "alpha", URL: server.URL, Method: "GET", TimeoutSeconds: 5, IntervalSeconds: 0.02},
		config.Target{Name: "beta", URL: server.URL, Method: "GET", TimeoutSeconds: 5, IntervalSeconds: 0.02},
	)

	m := NewMonitor(zap.NewNop(), cfg)
	out := &syncBuffer{}
	m.SetOutput(out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	// 等待两个目标都完成若干轮检测
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		a := m.Registry().Get("alpha").Snapshot()
		b := m.Registry().Get("beta").Snapshot()
		if a.TotalChecks >= 2 && b.TotalChecks >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run 返回错误: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("取消后 Run 未在限期内退出")
	}

	if hits.Load() < 4 {
		t.Errorf("两个目标各至少两轮检测，请求数应不少于 4，实际为 %d", hits.Load())
	}

	for _, name := range []string{"alpha", "beta"} {
		snapshot := m.Registry().Get(name).Snapshot()
		if snapshot.CurrentStatus != models.StatusHealthy {
			t.Errorf("目标 %s 全部成功后状态应为 healthy，实际为 %s", name, snapshot.CurrentStatus)
		}
		if snapshot.SuccessfulChecks != snapshot.TotalChecks {
			t.Errorf("目标 %s 不应有失败记录: total=%d successful=%d",
				name, snapshot.TotalChecks, snapshot.SuccessfulChecks)
		}
	}

	output := out.String()
	if !strings.Contains(output, "🚀 Starting HTTP monitor for 2 targets...") {
		t.Error("缺少启动横幅")
	}
	if got := strings.Count(output, "🏁 Final Summary:"); got != 1 {
		t.Errorf("最终汇总应恰好打印一次，实际为 %d 次", got)
	}
	if !strings.Contains(output, "alpha") || !strings.Contains(output, "beta") {
		t.Error("汇总表应包含全部目标")
	}
}

func TestMonitorFaultIsolation(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()

	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	badServer.Close() // 拒绝连接

	cfg := testConfig(
		config.Target{Name: "good", URL: okServer.URL, Method: "GET", TimeoutSeconds: 5, IntervalSeconds: 0.02},
		config.Target{Name: "bad", URL: badServer.URL, Method: "GET", TimeoutSeconds: 5, IntervalSeconds: 0.02},
	)

	m := NewMonitor(zap.NewNop(), cfg)
	m.SetOutput(&syncBuffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		good := m.Registry().Get("good").Snapshot()
		bad := m.Registry().Get("bad").Snapshot()
		if good.TotalChecks >= 2 && bad.TotalChecks >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("取消后 Run 未在限期内退出")
	}

	good := m.Registry().Get("good").Snapshot()
	bad := m.Registry().Get("bad").Snapshot()

	// 一个目标持续失败不应影响另一个目标的检测
	if good.TotalChecks < 2 || good.SuccessfulChecks != good.TotalChecks {
		t.Errorf("正常目标应持续成功检测: total=%d successful=%d", good.TotalChecks, good.SuccessfulChecks)
	}
	if bad.SuccessfulChecks != 0 {
		t.Errorf("失败目标不应有成功记录，实际为 %d", bad.SuccessfulChecks)
	}
	if bad.CurrentStatus == models.StatusHealthy {
		t.Error("持续失败的目标状态不应为 healthy")
	}
}
