package bus

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "acebus_published_messages_total",
		Help: "Messages published to the bus, by exchange.",
	}, []string{"exchange"})

	consumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "acebus_consumed_messages_total",
		Help: "Messages delivered by the bus, by queue.",
	}, []string{"queue"})

	channelRecreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "acebus_channel_recreations_total",
		Help: "Times a closed channel was recreated from the live connection.",
	})
)

func init() {
	prometheus.MustRegister(publishedTotal, consumedTotal, channelRecreatedTotal)
}
