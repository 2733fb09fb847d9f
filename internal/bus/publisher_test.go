package bus

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/quikmile/gpsingest/internal/metrics"
)

// testMetrics is shared across this package's tests: metrics.New registers
// its collectors on the global Prometheus registerer, so calling it more
// than once per test binary panics on duplicate registration.
var testMetricsOnce sync.Once
var testMetricsRegistry *metrics.Registry

func testMetrics() *metrics.Registry {
	testMetricsOnce.Do(func() {
		testMetricsRegistry = metrics.New()
	})
	return testMetricsRegistry
}

func newTestPublisher() *Publisher {
	return New("127.0.0.1:1", testMetrics(), zerolog.Nop())
}

func TestPublish_DropsWithoutIMEI(t *testing.T) {
	p := newTestPublisher()
	defer p.Close()

	m := testMetrics()
	before := testutil.ToFloat64(m.PublishesDropped.WithLabelValues(TopicEvents))
	p.Publish(TopicEvents, "", map[string]string{"status": "ONLINE"})
	after := testutil.ToFloat64(m.PublishesDropped.WithLabelValues(TopicEvents))

	assert.Equal(t, before+1, after)
}

func TestPublish_EnqueuesValidRecord(t *testing.T) {
	p := newTestPublisher()
	defer p.Close()

	m := testMetrics()
	before := testutil.ToFloat64(m.PublishesEnqueued.WithLabelValues(TopicLocation))
	p.Publish(TopicLocation, "123456789012345", map[string]float64{"lat": 22.5})
	after := testutil.ToFloat64(m.PublishesEnqueued.WithLabelValues(TopicLocation))

	assert.Equal(t, before+1, after)
}

func TestPublish_DropsUnmarshalableRecord(t *testing.T) {
	p := newTestPublisher()
	defer p.Close()

	m := testMetrics()
	before := testutil.ToFloat64(m.PublishesDropped.WithLabelValues(TopicStatus))
	p.Publish(TopicStatus, "123456789012345", make(chan int))
	after := testutil.ToFloat64(m.PublishesDropped.WithLabelValues(TopicStatus))

	assert.Equal(t, before+1, after)
}

func TestClose_DrainsQueueWithoutPanic(t *testing.T) {
	p := newTestPublisher()
	p.Publish(TopicEvents, "123456789012345", map[string]string{"status": "ONLINE"})
	p.Close()
}
