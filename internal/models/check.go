package models

import (
	"time"
)

// HealthStatus 目标健康状态
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"   // 健康：无连续失败且在线率 >= 99%
	StatusDegraded  HealthStatus = "degraded"  // 降级：少量连续失败或在线率 >= 95%
	StatusUnhealthy HealthStatus = "unhealthy" // 不健康：连续失败 >= 3 次或在线率过低
	StatusUnknown   HealthStatus = "unknown"   // 未知：尚未执行过检测
)

// HealthCheck 单次探测结果（创建后不可变）
type HealthCheck struct {
	Target       string        `json:"target"`                 // 目标名称
	Timestamp    time.Time     `json:"timestamp"`              // 检测时间
	Success      bool          `json:"success"`                // 是否成功
	StatusCode   int           `json:"statusCode,omitempty"`   // HTTP 状态码，0 表示未收到响应
	ResponseTime time.Duration `json:"responseTime"`           // 响应耗时
	Error        string        `json:"error,omitempty"`        // 失败原因描述
	CertDaysLeft *int          `json:"certDaysLeft,omitempty"` // HTTPS 证书剩余天数，nil 表示未知
}

// TargetHealth 目标健康度快照（Aggregate 的只读副本）
type TargetHealth struct {
	Name                string        `json:"name"`
	URL                 string        `json:"url"`
	CurrentStatus       HealthStatus  `json:"currentStatus"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	TotalChecks         int64         `json:"totalChecks"`
	SuccessfulChecks    int64         `json:"successfulChecks"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	AvgResponseTime     time.Duration `json:"avgResponseTime"`
	MinResponseTime     time.Duration `json:"minResponseTime"`
	MaxResponseTime     time.Duration `json:"maxResponseTime"`
	LastCheck           time.Time     `json:"lastCheck"`
	HealthScore         float64       `json:"healthScore"` // 0.0 ~ 1.0
	RecentChecks        []HealthCheck `json:"recentChecks,omitempty"`
}
