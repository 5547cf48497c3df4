package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClientTimeoutDefault(t *testing.T) {
	c := NewClient("http://gotenberg:3000", 0)
	require.Equal(t, defaultRenderTimeout, c.httpClient.Timeout)

	c = NewClient("http://gotenberg:3000", 5*time.Second)
	require.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestRenderHTMLSurfacesConverterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("chromium busy"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.RenderHTML(context.Background(), "<html></html>")
	require.ErrorContains(t, err, "status 503")
	require.ErrorContains(t, err, "chromium busy")
}

func TestRenderHTMLReturnsDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	pdf, err := c.RenderHTML(context.Background(), "<html></html>")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(pdf))
}
