package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okxTestServer(t *testing.T, funding, oi string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"instId":%q,"last":"1988.00","ts":"1700000100000"}]}`, r.URL.Query().Get("instId"))
	})
	mux.HandleFunc("/api/v5/public/funding-rate", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"fundingRate":%q}]}`, funding)
	})
	mux.HandleFunc("/api/v5/public/open-interest", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"oi":%q}]}`, oi)
	})
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"instId":"ETH-USDT-SWAP","state":"live"},{"instId":"BTC-USDT-SWAP","state":"live"}]}`)
	})
	return httptest.NewServer(mux)
}

func TestOKXQuote(t *testing.T) {
	srv := okxTestServer(t, "0.0001", "123456")
	defer srv.Close()

	c := NewOKX(srv.URL)
	q, err := c.Quote(context.Background(), "ETH-USDT-SWAP")
	require.NoError(t, err)

	assert.Equal(t, "ETH-USDT-SWAP", q.InstID)
	assert.Equal(t, 1988.00, q.Price)
	assert.Equal(t, int64(1700000100000), q.TS)
	require.NotNil(t, q.FundingRate)
	assert.Equal(t, 0.0001, *q.FundingRate)
	require.NotNil(t, q.OpenInterestContracts)
	assert.Equal(t, 123456.0, *q.OpenInterestContracts)
}

func TestOKXQuoteMalformedNumericsBecomeNil(t *testing.T) {
	srv := okxTestServer(t, "n/a", "")
	defer srv.Close()

	c := NewOKX(srv.URL)
	q, err := c.Quote(context.Background(), "ETH-USDT-SWAP")
	require.NoError(t, err)

	// Absent rather than zero.
	assert.Nil(t, q.FundingRate)
	assert.Nil(t, q.OpenInterestContracts)
	assert.Equal(t, 1988.00, q.Price)
}

func TestOKXQuoteErrorCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewOKX(srv.URL)
	_, err := c.Quote(context.Background(), "NOPE-USDT-SWAP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
}

func TestOKXInstruments(t *testing.T) {
	srv := okxTestServer(t, "0", "0")
	defer srv.Close()

	c := NewOKX(srv.URL)
	list, err := c.Instruments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ETH-USDT-SWAP", list[0].InstID)
}
