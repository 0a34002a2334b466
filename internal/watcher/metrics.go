package watcher

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_events_total",
		Help: "Chain events received by kind.",
	}, []string{"kind"})
	discussionsInserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_discussions_inserted_total",
		Help: "Discussion posts created for on-chain items.",
	}, []string{"kind"})
	duplicatesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_duplicates_skipped_total",
		Help: "Events whose discussion already existed.",
	}, []string{"kind"})
	updatesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_updates_total",
		Help: "Cross-links and status updates written to existing discussions.",
	}, []string{"kind"})
	failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_failures_total",
		Help: "Events dropped after an error.",
	}, []string{"kind"})
	botLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_bot_logins_total",
		Help: "Proposal bot logins by outcome.",
	}, []string{"outcome"})
	resyncs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watcher_resyncs_total",
		Help: "Full chain-db to discussion-db resyncs.",
	})
)

func init() {
	prometheus.MustRegister(eventsReceived, discussionsInserted, duplicatesSkipped, updatesApplied, failures, botLogins, resyncs)
}
