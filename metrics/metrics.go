// metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionsTotal counts redemption attempts by outcome code
	// ("success" or the stable error code).
	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redemptions_total",
		Help: "Redemption attempts by outcome",
	}, []string{"outcome"})

	// PlaysSettledTotal counts settlements by result.
	PlaysSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plays_settled_total",
		Help: "Play settlements by result (win/lose)",
	}, []string{"result"})

	// WebhookEventsTotal counts carrier webhook events by reported status
	// and how we handled them.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_webhook_events_total",
		Help: "Carrier webhook events by status and disposition",
	}, []string{"status", "disposition"})

	// RecordsPurgedTotal counts redemption records removed by the retention
	// worker.
	RecordsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redemption_records_purged_total",
		Help: "Redemption records purged after their data-deletion schedule",
	})
)
