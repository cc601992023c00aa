package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesStorefrontMetrics(t *testing.T) {
	BasketMutations.WithLabelValues("add").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_basket_mutations_total")
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(WebhookEvents.WithLabelValues("checkout.session.completed", "paid"))
	WebhookEvents.WithLabelValues("checkout.session.completed", "paid").Inc()
	after := testutil.ToFloat64(WebhookEvents.WithLabelValues("checkout.session.completed", "paid"))
	assert.Equal(t, before+1, after)
}
