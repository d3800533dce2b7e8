package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method: method, path: path, status: status})
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/gradebooks/:id/students/:studentId/annual", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/gradebooks/gb-1/students/stu-1/annual", "/nope/stu-2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{http.MethodGet, "/gradebooks/:id/students/:studentId/annual", http.StatusOK}, observer.seen[0])
	assert.Equal(t, observation{http.MethodGet, unmatchedRoute, http.StatusNotFound}, observer.seen[1])
}
