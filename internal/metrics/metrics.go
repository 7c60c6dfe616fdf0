package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Change notification metrics
	changeEventsBySource    map[string]int64 // listen | webhook
	changeEventsByTable     map[string]int64
	ChangeEventErrorsTotal  int64
	ListenerReconnectsTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Dashboard metrics
	DashboardRefreshesTotal int64
	DashboardRefreshErrors  int64
	lastRefreshDuration     time.Duration
	activeDashboards        int
	DashboardsEvictedTotal  int64

	// Scoreboard metrics
	HourWritesTotal   int64
	HourWriteFailures int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an empty metrics set
func New() *Metrics {
	return &Metrics{
		changeEventsBySource: make(map[string]int64),
		changeEventsByTable:  make(map[string]int64),
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		startTime:            time.Now(),
	}
}

// RecordChangeEvent counts a change notification by source and table
func (m *Metrics) RecordChangeEvent(source, table string) {
	m.mu.Lock()
	m.changeEventsBySource[source]++
	m.changeEventsByTable[table]++
	m.mu.Unlock()
}

// RecordChangeEventError counts an undecodable or rejected notification
func (m *Metrics) RecordChangeEventError() {
	m.mu.Lock()
	m.ChangeEventErrorsTotal++
	m.mu.Unlock()
}

// RecordListenerReconnect counts a LISTEN connection re-establishment
func (m *Metrics) RecordListenerReconnect() {
	m.mu.Lock()
	m.ListenerReconnectsTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordDashboardRefresh records one refresh and whether it failed
func (m *Metrics) RecordDashboardRefresh(duration time.Duration, err error) {
	m.mu.Lock()
	m.DashboardRefreshesTotal++
	if err != nil {
		m.DashboardRefreshErrors++
	}
	m.lastRefreshDuration = duration
	m.mu.Unlock()
}

// SetActiveDashboards sets the live dashboard gauge
func (m *Metrics) SetActiveDashboards(n int) {
	m.mu.Lock()
	m.activeDashboards = n
	m.mu.Unlock()
}

// RecordDashboardsEvicted counts idle dashboards closed by the service
func (m *Metrics) RecordDashboardsEvicted(n int) {
	m.mu.Lock()
	m.DashboardsEvictedTotal += int64(n)
	m.mu.Unlock()
}

// RecordHourWrite counts a remote scoreboard write
func (m *Metrics) RecordHourWrite(err error) {
	m.mu.Lock()
	m.HourWritesTotal++
	if err != nil {
		m.HourWriteFailures++
	}
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("dailywin_uptime_seconds", time.Since(m.startTime).Seconds())

		// Change notifications
		for _, source := range sortedKeys(m.changeEventsBySource) {
			write("dailywin_change_events_total", m.changeEventsBySource[source], "source", source)
		}
		for _, table := range sortedKeys(m.changeEventsByTable) {
			write("dailywin_change_events_by_table_total", m.changeEventsByTable[table], "table", table)
		}
		write("dailywin_change_event_errors_total", m.ChangeEventErrorsTotal)
		write("dailywin_listener_reconnects_total", m.ListenerReconnectsTotal)

		// WebSocket metrics
		write("dailywin_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("dailywin_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("dailywin_websocket_active_connections", m.activeConnections)
		write("dailywin_websocket_messages_total", m.WebSocketMessagesTotal)
		write("dailywin_websocket_errors_total", m.WebSocketErrorsTotal)

		// Dashboards
		write("dailywin_dashboard_refreshes_total", m.DashboardRefreshesTotal)
		write("dailywin_dashboard_refresh_errors_total", m.DashboardRefreshErrors)
		write("dailywin_dashboard_refresh_duration_seconds", m.lastRefreshDuration.Seconds())
		write("dailywin_dashboards_active", m.activeDashboards)
		write("dailywin_dashboards_evicted_total", m.DashboardsEvictedTotal)

		// Scoreboard
		write("dailywin_hour_writes_total", m.HourWritesTotal)
		write("dailywin_hour_write_failures_total", m.HourWriteFailures)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("dailywin_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
