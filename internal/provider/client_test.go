package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_GetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/address/0xwallet/transactions_v2/", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "10000", r.URL.Query().Get("page-size"))

		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"address": "0xwallet",
				"items": []map[string]interface{}{
					{
						"tx_hash":          "0xaaa",
						"block_signed_at":  "2021-05-03T12:34:56Z",
						"from_address":     "0xwallet",
						"to_address":       "0x5D3A536E4D6DBD6114CC1EAD35777BAB948E3643",
						"to_address_label": "cDAI",
						"decoded":          map[string]interface{}{"name": "mint"},
						"value":            "1000000000000000000",
					},
					{
						"tx_hash":         "0xbbb",
						"block_signed_at": "2021-05-04T00:00:00Z",
						"from_address":    "0xwallet",
						"to_address":      nil,
						"value":           0,
					},
				},
				"pagination": map[string]interface{}{"has_more": false, "page_number": 0},
			},
			"error": false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	txs, err := client.GetTransactions(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "0xaaa", txs[0].TxHash)
	assert.Equal(t, "cDAI", txs[0].Label())
	assert.Equal(t, "mint", txs[0].DecodedName())
	assert.Equal(t, "1000000000000000000", txs[0].Value.String())
	assert.Equal(t, time.Date(2021, 5, 3, 12, 34, 56, 0, time.UTC), txs[0].BlockSignedAt.UTC())

	assert.Equal(t, "", txs[1].To())
	assert.Equal(t, "", txs[1].Label())
	assert.Equal(t, "", txs[1].DecodedName())
	assert.Equal(t, "0", txs[1].Value.String())
}

func TestClient_GetTransactions_Pagination(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page := r.URL.Query().Get("page-number")
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"items":      []map[string]interface{}{{"tx_hash": "0x" + page, "value": "1"}},
				"pagination": map[string]interface{}{"has_more": page == "0"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	txs, err := client.GetTransactions(context.Background(), "0xw")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "0x0", txs[0].TxHash)
	assert.Equal(t, "0x1", txs[1].TxHash)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GetTransactions_MaxPages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"items":      []map[string]interface{}{{"tx_hash": "0x1"}},
				"pagination": map[string]interface{}{"has_more": true},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", WithMaxPages(3))
	txs, err := client.GetTransactions(context.Background(), "0xw")
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Nil(t, txs)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	client = NewClient(server.URL, "k", WithMaxPages(0))
	txs, err = client.GetTransactions(context.Background(), "0xw")
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Nil(t, txs)
	assert.Zero(t, calls.Load())
}

func TestClient_GetTransactions_LastPageWithinLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page-number")
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"items":      []map[string]interface{}{{"tx_hash": "0x" + page}},
				"pagination": map[string]interface{}{"has_more": page != "1"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", WithMaxPages(2))
	txs, err := client.GetTransactions(context.Background(), "0xw")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestClient_GetTransactionDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/transaction_v2/0xabc/", r.URL.Path)
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"items": []map[string]interface{}{
					{
						"tx_hash": "0xabc",
						"log_events": []map[string]interface{}{
							{"log_offset": 0, "decoded": nil},
							{"log_offset": 1, "decoded": map[string]interface{}{"name": "Transfer"}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	detail, err := client.GetTransactionDetail(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, detail.LogEvents, 2)
	assert.Equal(t, "", detail.LogEvents[0].DecodedName())
	assert.Equal(t, "Transfer", detail.LogEvents[1].DecodedName())
}

func TestClient_GetTransactionDetail_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"items": []interface{}{}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.GetTransactionDetail(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.GetTransactionDetail(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"data":          nil,
			"error":         true,
			"error_message": "Invalid API key",
			"error_code":    401,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad")
	_, err := client.GetTransactions(context.Background(), "0xw")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Code)
	assert.Equal(t, "Invalid API key", apiErr.Message)
}

func TestClient_RetryOn429(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"items": []interface{}{}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k",
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
	)
	txs, err := client.GetTransactions(context.Background(), "0xw")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_NoRetryOn404(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, strings.Repeat("x", 2000), http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", WithRetryDelay(time.Millisecond))
	_, err := client.GetTransactionDetail(context.Background(), "0xabc")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.LessOrEqual(t, len(se.Body), maxErrorBody)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k",
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
	)
	_, err := client.GetTransactions(context.Background(), "0xw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "k", WithRetryDelay(time.Second))
	_, err := client.GetTransactions(ctx, "0xw")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.5","b":42,"c":null}`), &v))
	assert.Equal(t, Amount("12.5"), v.A)
	assert.Equal(t, Amount("42"), v.B)
	assert.Equal(t, Amount(""), v.C)
}
