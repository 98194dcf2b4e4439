package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

type Service struct {
	Subscribers        prometheus.Gauge
	Publishes          prometheus.Counter
	DroppedSubscribers prometheus.Counter
	Mutations          *prometheus.CounterVec
}

// NewService creates and registers the Prometheus collectors.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoreboard_subscribers",
			Help: "Number of open push-channel subscribers.",
		}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreboard_publishes_total",
			Help: "Match updates fanned out to subscribers.",
		}),
		DroppedSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreboard_dropped_subscribers_total",
			Help: "Subscribers removed because their channel stalled or broke.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoreboard_mutations_total",
			Help: "Match controller operations by outcome.",
		}, []string{"op", "ok"}),
	}

	reg.MustRegister(s.Subscribers, s.Publishes, s.DroppedSubscribers, s.Mutations)
	return s
}

// NewHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

func (s *Service) SetSubscribers(n int)   { s.Subscribers.Set(float64(n)) }
func (s *Service) IncPublishes()          { s.Publishes.Inc() }
func (s *Service) IncDroppedSubscribers() { s.DroppedSubscribers.Inc() }

func (s *Service) IncMutations(op string, ok bool) {
	s.Mutations.WithLabelValues(op, strconv.FormatBool(ok)).Inc()
}
