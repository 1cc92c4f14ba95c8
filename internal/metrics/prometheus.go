package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// PrometheusHandler exposes every counter as one metric with an `event`
// label.
func PrometheusHandler(m *Metrics) http.Handler {
	escaper := strings.NewReplacer("\\", "\\\\", "\"", "\\\"")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintln(w, "# HELP burner_signaling_events_total Internal event counters.")
		_, _ = fmt.Fprintln(w, "# TYPE burner_signaling_events_total counter")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "burner_signaling_events_total{event=\"%s\"} %d\n", escaper.Replace(k), snap[k])
		}
	})
}
