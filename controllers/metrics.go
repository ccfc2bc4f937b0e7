package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_updates_total",
		Help: "Decoded updates handled, by kind.",
	}, []string{"kind"})
	updatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_updates_dropped_total",
		Help: "Updates dropped because the worker queue stayed full.",
	})
	handlerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_handler_panics_total",
		Help: "Event handlers that panicked and were recovered.",
	})
)
