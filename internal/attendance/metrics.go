package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var intakeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "campustrack_intake_outcomes_total",
	Help: "Intake attempts by outcome.",
}, []string{"outcome"})
