package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stock operations.
const (
	StockOpReceive = "receive"
	StockOpConsume = "consume"
)

// StockMetrics records ledger mutations.
type StockMetrics struct {
	mutations *prometheus.CounterVec
	units     *prometheus.CounterVec
	shortfall prometheus.Counter
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_mutations_total",
		Help: "Committed or attempted stock mutations by operation.",
	}, []string{"operation"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_units_total",
		Help: "Units moved through the stock ledger by operation.",
	}, []string{"operation"})
	shortfall := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_shortfall_units_total",
		Help: "Requested units that could not be consumed for lack of stock.",
	})
	reg.MustRegister(mutations, units, shortfall)
	return &StockMetrics{
		mutations: mutations,
		units:     units,
		shortfall: shortfall,
	}
}

// ObserveMutation counts one mutation and the units it moved.
func (m *StockMetrics) ObserveMutation(operation string, units int) {
	if m == nil || m.mutations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.mutations.WithLabelValues(op).Inc()
	if units > 0 {
		m.units.WithLabelValues(op).Add(float64(units))
	}
}

// AddShortfall records units that could not be consumed.
func (m *StockMetrics) AddShortfall(units int) {
	if m == nil || m.shortfall == nil || units <= 0 {
		return
	}
	m.shortfall.Add(float64(units))
}
