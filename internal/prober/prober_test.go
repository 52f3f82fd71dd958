package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/httping/internal/config"
)

func makeTarget(url string) config.Target {
	return config.Target{
		Name:            "api",
		URL:             url,
		Method:          "GET",
		TimeoutSeconds:  5,
		IntervalSeconds: 60,
	}
}

func TestCheckSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProber()
	check := p.Check(context.Background(), makeTarget(server.URL))

	if !check.Success {
		t.Errorf("200 响应应为成功，错误: %s", check.Error)
	}
	if check.StatusCode != 200 {
		t.Errorf("状态码应为 200，实际为 %d", check.StatusCode)
	}
	if check.Target != "api" {
		t.Errorf("目标名称应为 api，实际为 %s", check.Target)
	}
	if check.ResponseTime <= 0 {
		t.Error("响应耗时应大于 0")
	}
	if check.Error != "" {
		t.Errorf("成功检测不应有错误信息: %s", check.Error)
	}
}

func TestCheckExpectedStatus(t *testing.T) {
	var status int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	target := makeTarget(server.URL)
	target.ExpectedStatus = []int{200, 301, 302}
	p := NewProber()

	t.Run("301 在期望列表内", func(t *testing.T) {
		status = 301
		check := p.Check(context.Background(), target)
		if !check.Success {
			t.Errorf("301 在期望状态码列表内，应为成功，错误: %s", check.Error)
		}
	})

	t.Run("404 不在期望列表内", func(t *testing.T) {
		status = 404
		check := p.Check(context.Background(), target)
		if check.Success {
			t.Error("404 不在期望状态码列表内，应为失败")
		}
		if check.StatusCode != 404 {
			t.Errorf("状态码应为 404，实际为 %d", check.StatusCode)
		}
		if check.Error == "" {
			t.Error("失败检测应有错误描述")
		}
	})
}

func TestCheckDefaultAny2xx(t *testing.T) {
	var status int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	p := NewProber()
	target := makeTarget(server.URL)

	status = 204
	if check := p.Check(context.Background(), target); !check.Success {
		t.Errorf("未配置期望状态码时任意 2xx 应为成功，错误: %s", check.Error)
	}

	status = 500
	if check := p.Check(context.Background(), target); check.Success {
		t.Error("500 不是 2xx，应为失败")
	}
}

func TestCheckExpectedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","version":"1.0"}`))
	}))
	defer server.Close()

	p := NewProber()

	t.Run("内容匹配", func(t *testing.T) {
		target := makeTarget(server.URL)
		target.ExpectedContent = `"status":"ok"`
		check := p.Check(context.Background(), target)
		if !check.Success {
			t.Errorf("内容匹配应为成功，错误: %s", check.Error)
		}
	})

	t.Run("内容不匹配", func(t *testing.T) {
		target := makeTarget(server.URL)
		target.ExpectedContent = `"status":"down"`
		check := p.Check(context.Background(), target)
		if check.Success {
			t.Error("内容不匹配应为失败")
		}
		if !strings.Contains(check.Error, "not found") {
			t.Errorf("内容不匹配的错误描述应区别于网络错误: %s", check.Error)
		}
	})
}

func TestCheckMethodAndHeaders(t *testing.T) {
	var gotMethod, gotHeader, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Api-Key")
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	p := NewProber()

	target := makeTarget(server.URL)
	target.Method = "POST"
	target.Headers = map[string]string{"X-Api-Key": "secret"}
	p.Check(context.Background(), target)

	if gotMethod != "POST" {
		t.Errorf("应使用配置的 POST 方法，实际为 %s", gotMethod)
	}
	if gotHeader != "secret" {
		t.Errorf("应携带配置的请求头，实际为 %q", gotHeader)
	}
	// 未指定 User-Agent 时应自动补充
	if gotUA == "" {
		t.Error("未指定 User-Agent 时应随机补充一个")
	}

	// 指定了 User-Agent 时不应覆盖
	target.Headers = map[string]string{"User-Agent": "custom-agent/1.0"}
	p.Check(context.Background(), target)
	if gotUA != "custom-agent/1.0" {
		t.Errorf("指定的 User-Agent 不应被覆盖，实际为 %s", gotUA)
	}
}

func TestCheckNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关闭，制造拒绝连接

	p := NewProber()
	check := p.Check(context.Background(), makeTarget(server.URL))

	if check.Success {
		t.Error("拒绝连接应为失败")
	}
	if check.StatusCode != 0 {
		t.Errorf("网络失败时状态码应为 0，实际为 %d", check.StatusCode)
	}
	if check.Error == "" {
		t.Error("网络失败应有错误描述")
	}
}

func TestCheckTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	target := makeTarget(server.URL)
	target.TimeoutSeconds = 0.1

	p := NewProber()
	start := time.Now()
	check := p.Check(context.Background(), target)

	if check.Success {
		t.Error("超时应为失败")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("应在超时时间附近返回，实际耗时 %v", elapsed)
	}
}

func TestCheckCertDaysLeft(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProber()
	check := p.Check(context.Background(), makeTarget(server.URL))

	if !check.Success {
		t.Fatalf("HTTPS 检测应为成功，错误: %s", check.Error)
	}
	if check.CertDaysLeft == nil {
		t.Fatal("HTTPS 目标应返回证书剩余天数")
	}
	// httptest 的自签证书有效期约一年
	if *check.CertDaysLeft <= 0 {
		t.Errorf("证书剩余天数应大于 0，实际为 %d", *check.CertDaysLeft)
	}
}

func TestCheckHTTPNoCertInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := NewProber()
	check := p.Check(context.Background(), makeTarget(server.URL))

	if check.CertDaysLeft != nil {
		t.Error("HTTP 目标不应返回证书信息")
	}
}
