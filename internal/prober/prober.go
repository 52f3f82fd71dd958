package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/models"
	"github.com/dushixiang/httping/pkg/useragent"
)

// Prober 对单个目标执行一次 HTTP 探测
type Prober struct {
	client *http.Client
}

// NewProber 创建探测器
func NewProber() *Prober {
	// 创建自定义的 HTTP 客户端，支持自签名证书
	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 限制重定向次数为 10
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}

	return &Prober{client: client}
}

// Check 执行一次探测，发出恰好一个请求。
// 网络层失败（超时、拒绝连接、DNS 错误）不视为致命错误，
// 仅记录为一次失败的检测结果。
func (p *Prober) Check(ctx context.Context, target config.Target) models.HealthCheck {
	result := models.HealthCheck{
		Target:    target.Name,
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, target.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request failed: %v", err)
		return result
	}

	for key, value := range target.Headers {
		req.Header.Set(key, value)
	}

	// 未指定 User-Agent 时随机选取一个
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", useragent.Random())
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	result.ResponseTime = time.Since(start)

	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	// 检查状态码：配置了期望状态码时精确匹配，否则接受任意 2xx
	statusOK := false
	if len(target.ExpectedStatus) > 0 {
		for _, code := range target.ExpectedStatus {
			if resp.StatusCode == code {
				statusOK = true
				break
			}
		}
		if !statusOK {
			result.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		}
	} else {
		statusOK = resp.StatusCode >= 200 && resp.StatusCode < 300
		if !statusOK {
			result.Error = fmt.Sprintf("non-2xx status code: %d", resp.StatusCode)
		}
	}

	// 检查响应内容，仅在配置了期望内容时读取响应体
	contentOK := true
	if target.ExpectedContent != "" {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			contentOK = false
			result.Error = fmt.Sprintf("read response body failed: %v", err)
		} else if !strings.Contains(string(body), target.ExpectedContent) {
			contentOK = false
			result.Error = fmt.Sprintf("expected content %q not found in response", target.ExpectedContent)
		}
	}

	// HTTPS 目标获取证书剩余天数，TLS 状态不可用时保持未知
	if target.IsHTTPS() && resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		daysLeft := int(time.Until(cert.NotAfter).Hours() / 24)
		result.CertDaysLeft = &daysLeft
	}

	result.Success = statusOK && contentOK
	return result
}
