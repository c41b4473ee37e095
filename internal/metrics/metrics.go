package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minetrade_orders_created_total",
		Help: "Mining orders created.",
	})
	OrdersClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minetrade_orders_closed_total",
		Help: "Mining orders reaching a terminal state.",
	}, []string{"status"})
	AccrualsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minetrade_accruals_applied_total",
		Help: "Accrual credits applied to wallets.",
	})
	TopupsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minetrade_topups_recorded_total",
		Help: "Administrator top-ups recorded.",
	})
	ExchangesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minetrade_exchanges_executed_total",
		Help: "Wallet asset exchanges executed.",
	})
	StalePriceExchanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minetrade_exchanges_stale_price_total",
		Help: "Exchanges executed against a stale price snapshot.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
