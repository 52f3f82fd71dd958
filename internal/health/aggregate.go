package health

import (
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/models"
)

// historyCapacity 每个目标保留的最近检测结果数量，超出时淘汰最旧的一条
const historyCapacity = 100

// Aggregate 单个目标的滚动健康状态。
// 只有该目标自己的轮询循环会写入，Reporter 通过 Snapshot 读取，
// 各目标使用独立的锁，互不竞争。
type Aggregate struct {
	mu sync.RWMutex

	name string
	url  string

	status              models.HealthStatus
	consecutiveFailures int
	totalChecks         int64
	successfulChecks    int64

	// 响应时间统计：保存精确的累计和，读取时才求平均，
	// 避免增量平均在长期运行中累积舍入误差
	totalResponseTime time.Duration
	minResponseTime   time.Duration
	maxResponseTime   time.Duration

	lastCheck   time.Time
	healthScore float64

	recent []models.HealthCheck
}

// NewAggregate 创建目标的健康状态，首次检测前状态为 unknown
func NewAggregate(name, url string) *Aggregate {
	return &Aggregate{
		name:        name,
		url:         url,
		status:      models.StatusUnknown,
		healthScore: 1.0,
		recent:      make([]models.HealthCheck, 0, historyCapacity),
	}
}

// Apply 应用一次检测结果并返回更新后的快照
func (a *Aggregate) Apply(check models.HealthCheck) models.TargetHealth {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalChecks++
	a.lastCheck = check.Timestamp

	if check.Success {
		a.successfulChecks++
		a.consecutiveFailures = 0
	} else {
		a.consecutiveFailures++
	}

	// 更新响应时间统计
	a.totalResponseTime += check.ResponseTime
	if a.totalChecks == 1 || check.ResponseTime < a.minResponseTime {
		a.minResponseTime = check.ResponseTime
	}
	if check.ResponseTime > a.maxResponseTime {
		a.maxResponseTime = check.ResponseTime
	}

	// 更新状态
	uptime := a.uptimePercentage()
	switch {
	case a.consecutiveFailures == 0:
		if uptime >= 99.0 {
			a.status = models.StatusHealthy
		} else if uptime >= 95.0 {
			a.status = models.StatusDegraded
		} else {
			a.status = models.StatusUnhealthy
		}
	case a.consecutiveFailures >= 3:
		a.status = models.StatusUnhealthy
	default:
		a.status = models.StatusDegraded
	}

	// 健康分 = 0.7 * 在线率 + 0.3 * 响应时间分
	a.healthScore = 0.7*(uptime/100.0) + 0.3*responseTimeScore(a.avgResponseTime())

	// 保存最近的检测结果，超过容量时淘汰最旧的
	a.recent = append(a.recent, check)
	if len(a.recent) > historyCapacity {
		a.recent = a.recent[1:]
	}

	return a.snapshotLocked()
}

// Snapshot 返回当前状态的只读副本
func (a *Aggregate) Snapshot() models.TargetHealth {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Aggregate) snapshotLocked() models.TargetHealth {
	recent := make([]models.HealthCheck, len(a.recent))
	copy(recent, a.recent)

	return models.TargetHealth{
		Name:                a.name,
		URL:                 a.url,
		CurrentStatus:       a.status,
		ConsecutiveFailures: a.consecutiveFailures,
		TotalChecks:         a.totalChecks,
		SuccessfulChecks:    a.successfulChecks,
		UptimePercentage:    a.uptimePercentage(),
		AvgResponseTime:     a.avgResponseTime(),
		MinResponseTime:     a.minResponseTime,
		MaxResponseTime:     a.maxResponseTime,
		LastCheck:           a.lastCheck,
		HealthScore:         a.healthScore,
		RecentChecks:        recent,
	}
}

func (a *Aggregate) uptimePercentage() float64 {
	if a.totalChecks == 0 {
		return 0
	}
	return float64(a.successfulChecks) / float64(a.totalChecks) * 100.0
}

func (a *Aggregate) avgResponseTime() time.Duration {
	if a.totalChecks == 0 {
		return 0
	}
	return a.totalResponseTime / time.Duration(a.totalChecks)
}

// responseTimeScore 平均响应时间的阶梯分
func responseTimeScore(avg time.Duration) float64 {
	switch ms := avg.Milliseconds(); {
	case ms <= 500:
		return 1.0
	case ms <= 2000:
		return 0.8
	case ms <= 5000:
		return 0.5
	default:
		return 0.2
	}
}

// Registry 目标名称到健康状态的映射。
// 启动时构建一次，之后不再增删，读取无需加锁。
type Registry struct {
	aggregates map[string]*Aggregate
}

// NewRegistry 为每个目标创建一个 Aggregate
func NewRegistry(targets []config.Target) *Registry {
	aggregates := make(map[string]*Aggregate, len(targets))
	for _, t := range targets {
		aggregates[t.Name] = NewAggregate(t.Name, t.URL)
	}
	return &Registry{aggregates: aggregates}
}

// Get 获取指定目标的 Aggregate，不存在时返回 nil
func (r *Registry) Get(name string) *Aggregate {
	return r.aggregates[name]
}

// Snapshots 返回所有目标的快照，按名称排序
func (r *Registry) Snapshots() []models.TargetHealth {
	out := make([]models.TargetHealth, 0, len(r.aggregates))
	for _, agg := range r.aggregates {
		out = append(out, agg.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
