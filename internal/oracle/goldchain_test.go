package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/vgold", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"0.0523","timestamp":1750000000}`))
	}))
	defer srv.Close()

	c := NewGoldchainClient(srv.URL, "secret", time.Second)
	price, err := c.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.0523", price.String())
}

func TestGetPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGoldchainClient(srv.URL, "", time.Second)
	_, err := c.GetPrice(context.Background())
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestGetPriceRejectsNonPositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":"0"}`))
	}))
	defer srv.Close()

	c := NewGoldchainClient(srv.URL, "", time.Second)
	_, err := c.GetPrice(context.Background())
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
}
