package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 单据创建数
	draftsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_created_total",
			Help: "Total number of drafts created",
		},
	)

	// 单据提交数
	draftsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_submitted_total",
			Help: "Total number of drafts submitted",
		},
	)

	// 审批操作数
	approvalActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_actions_total",
			Help: "Total number of approval actions",
		},
		[]string{"action"}, // approve, reject, return, forward
	)

	// 台账调整数
	ledgerAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_adjustments_total",
			Help: "Total number of balance ledger adjustments",
		},
		[]string{"op"}, // reserve, finalize, release, unwind, allocate
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 单据状态分布
	draftsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drafts_by_status",
			Help: "Number of drafts by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(draftsCreatedTotal)
	prometheus.MustRegister(draftsSubmittedTotal)
	prometheus.MustRegister(approvalActionsTotal)
	prometheus.MustRegister(ledgerAdjustmentsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(draftsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordDraftCreated 记录单据创建
func RecordDraftCreated() {
	draftsCreatedTotal.Inc()
}

// RecordDraftSubmitted 记录单据提交
func RecordDraftSubmitted() {
	draftsSubmittedTotal.Inc()
}

// RecordApprovalAction 记录审批操作
func RecordApprovalAction(action string) {
	approvalActionsTotal.WithLabelValues(action).Inc()
}

// RecordLedgerAdjustment 记录台账调整
func RecordLedgerAdjustment(op string) {
	ledgerAdjustmentsTotal.WithLabelValues(op).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateDraftsByStatus 更新单据状态分布指标
func UpdateDraftsByStatus(status string, count float64) {
	draftsByStatus.WithLabelValues(status).Set(count)
}
