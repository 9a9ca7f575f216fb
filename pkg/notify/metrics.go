package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vecinotech/vecinotech/internal/build"
)

var (
	publishedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Subsystem: "notify",
		Name:      "events_published_total",
		Help:      "Events published on the bus, by topic family and kind.",
	}, []string{"family", "kind"})

	deliveredCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Subsystem: "notify",
		Name:      "events_delivered_total",
		Help:      "Events handed to a subscription buffer.",
	}, []string{"family"})

	droppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Subsystem: "notify",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscription buffer was full.",
	}, []string{"family"})

	rejectedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Subsystem: "notify",
		Name:      "authorization_rejected_total",
		Help:      "Subscriptions and deliveries refused by the participant check.",
	}, []string{"family", "stage"})

	subscriptionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: build.ProjectName,
		Subsystem: "notify",
		Name:      "subscriptions",
		Help:      "Live subscriptions.",
	}, []string{"family"})
)
