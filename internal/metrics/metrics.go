package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors 持有服务的 Prometheus 指标，使用独立 Registry 以便测试并行创建。
// nil *Collectors 的所有方法都是空操作。
type Collectors struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	indexLoads       *prometheus.CounterVec
	indexLoadSeconds prometheus.Histogram
}

// New 创建并注册全部指标，包括 Go 运行时与进程指标。
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graph_edge_requests_total",
			Help: "Requests handled, by action and response status.",
		}, []string{"action", "status"}),
		indexLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graph_edge_index_loads_total",
			Help: "Index resolutions, by where the index came from (memo, edge, store).",
		}, []string{"source"}),
		indexLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graph_edge_index_load_seconds",
			Help:    "Time spent resolving the model index.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
	c.registry.MustRegister(
		c.requests,
		c.indexLoads,
		c.indexLoadSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRequest 记录一次请求。
func (c *Collectors) ObserveRequest(action string, status int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(action, strconv.Itoa(status)).Inc()
}

// ObserveIndexLoad 记录一次索引解析的来源与耗时。
func (c *Collectors) ObserveIndexLoad(source string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.indexLoads.WithLabelValues(source).Inc()
	c.indexLoadSeconds.Observe(elapsed.Seconds())
}

// Handler 返回 Prometheus 文本格式的 http.Handler。
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
