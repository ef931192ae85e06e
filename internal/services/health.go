package services

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthService struct {
	logger      *logrus.Logger
	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	timeout     time.Duration

	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
	systemMetrics     *prometheus.GaugeVec

	stopOnce sync.Once
	stop     chan struct{}
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

func NewHealthService(registerer prometheus.Registerer, logger *logrus.Logger) *HealthService {
	hs := &HealthService{
		logger:      logger,
		critical:    make(map[string]HealthCheck),
		nonCritical: make(map[string]HealthCheck),
		timeout:     5 * time.Second,
		stop:        make(chan struct{}),
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	hs.lastHealthCheck = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})

	hs.systemMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "system_info",
		Help: "System information metrics",
	}, []string{"metric_type"})

	// Register metrics with error handling - ignore if already registered
	for _, collector := range []prometheus.Collector{hs.healthCheckStatus, hs.lastHealthCheck, hs.systemMetrics} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register health metric")
			}
		}
	}

	return hs
}

// AddCritical registers a dependency whose failure makes the service unhealthy.
func (s *HealthService) AddCritical(name string, check HealthCheck) {
	s.critical[name] = check
}

// AddNonCritical registers a dependency whose failure only degrades the service.
func (s *HealthService) AddNonCritical(name string, check HealthCheck) {
	s.nonCritical[name] = check
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	for _, name := range sortedNames(s.critical) {
		if err := s.run(ctx, s.critical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for _, name := range sortedNames(s.nonCritical) {
		if err := s.run(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	switch {
	case len(status.Critical) > 0:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	return status
}

func (s *HealthService) run(ctx context.Context, check HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

func sortedNames(checks map[string]HealthCheck) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartSystemMetrics samples runtime statistics until Stop is called.
func (s *HealthService) StartSystemMetrics(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var memStats runtime.MemStats
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}

			runtime.ReadMemStats(&memStats)
			s.systemMetrics.WithLabelValues("memory_alloc_bytes").Set(float64(memStats.Alloc))
			s.systemMetrics.WithLabelValues("memory_sys_bytes").Set(float64(memStats.Sys))
			s.systemMetrics.WithLabelValues("goroutines_count").Set(float64(runtime.NumGoroutine()))
			s.systemMetrics.WithLabelValues("gc_runs_total").Set(float64(memStats.NumGC))
		}
	}()
}

func (s *HealthService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
