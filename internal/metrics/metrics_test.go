package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := Recorder{}
	before := testutil.ToFloat64(RSVPTotal.WithLabelValues("reserve", "full"))
	r.ObserveRSVP("reserve", "full")
	assert.Equal(t, before+1, testutil.ToFloat64(RSVPTotal.WithLabelValues("reserve", "full")))

	r.SetConnections(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(WebsocketConnections))

	drops := testutil.ToFloat64(BroadcastDropsTotal)
	r.ObserveBroadcast("event_created", "all", 4, 2)
	assert.Equal(t, drops+2, testutil.ToFloat64(BroadcastDropsTotal))
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/events/:id", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/abc", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/events/:id", "200")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	Recorder{}.ObserveRSVP("cancel", "released")

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "campus_events_rsvp_total")
	assert.Contains(t, string(body), "go_goroutines")
}
