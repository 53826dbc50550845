package ergoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBlockID  = "b573b5f9d433b1a35cbc1f1a14ae6b8cce1bd1d2e1a880f8b59454b398f1edf6"
	testParentID = "9e5e14f31a2d0b3b6b1e7e8f7a3a5f3e8f0c8b5a5d4c3b2a190807060504f3e2"
)

func newTestClient(t *testing.T, handler http.Handler, config ...Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cf := Config{}
	if len(config) > 0 {
		cf = config[0]
	}
	cf.URL = server.URL
	client, err := New(cf)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestInfo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"ergo-mainnet","appVersion":"5.0.22","fullHeight":1150000,"headersHeight":1150002,"difficulty":"2135386913313280"}`)
	}))

	info, err := client.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1150000), info.FullHeight)
	assert.Equal(t, int64(1150002), info.HeadersHeight)
	assert.Equal(t, Difficulty(2135386913313280), info.Difficulty)
}

func TestBlockIDsAtHeight(t *testing.T) {
	t.Run("main_chain_first", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/blocks/at/42", r.URL.Path)
			writeJSON(t, w, []string{testBlockID, testParentID})
		}))

		ids, err := client.BlockIDsAtHeight(context.Background(), 42)
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.Equal(t, testBlockID, ids[0])
	})

	t.Run("empty_is_not_found", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, []string{})
		}))

		_, err := client.BlockIDsAtHeight(context.Background(), 99999999)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.NotFound)
	})
}

func TestBlockByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/blocks/"+testBlockID, r.URL.Path)
			writeJSON(t, w, FullBlock{
				Header: BlockHeader{
					ID:       testBlockID,
					ParentID: testParentID,
					Height:   42,
				},
				BlockTransactions: BlockTransactions{
					HeaderID: testBlockID,
					Transactions: []Transaction{
						{ID: strings.Repeat("a1", 32)},
					},
				},
			})
		}))

		block, err := client.BlockByID(context.Background(), testBlockID)
		require.NoError(t, err)
		assert.Equal(t, testBlockID, block.Header.ID)
		assert.Equal(t, int64(42), block.Header.Height)
		require.Len(t, block.BlockTransactions.Transactions, 1)
	})

	t.Run("malformed_id_rejected_without_request", func(t *testing.T) {
		var hits atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))

		_, err := client.BlockByID(context.Background(), "not-a-block-id")
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.InvalidArgument)
		assert.Zero(t, hits.Load())
	})

	t.Run("not_found_is_not_retried", func(t *testing.T) {
		var hits atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))

		_, err := client.BlockByID(context.Background(), testBlockID)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.NotFound)
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestHeaderByID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blocks/"+testBlockID+"/header", r.URL.Path)
		writeJSON(t, w, BlockHeader{ID: testBlockID, ParentID: testParentID, Height: 42})
	}))

	header, err := client.HeaderByID(context.Background(), testBlockID)
	require.NoError(t, err)
	assert.Equal(t, testParentID, header.ParentID)
}

func TestUnconfirmedTransactions(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/unconfirmed", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		writeJSON(t, w, []Transaction{{ID: strings.Repeat("c2", 32)}})
	}))

	txs, err := client.UnconfirmedTransactions(context.Background(), 50, 100)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestRetry(t *testing.T) {
	t.Run("recovers_from_transient_errors", func(t *testing.T) {
		var hits atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			writeJSON(t, w, NodeInfo{FullHeight: 7})
		}))

		info, err := client.Info(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), info.FullHeight)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("gives_up_after_max_attempts", func(t *testing.T) {
		var hits atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		_, err := client.Info(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.Unavailable)
		assert.Equal(t, int32(retryMaxAttempts), hits.Load())
	})

	t.Run("bad_request_is_not_retried", func(t *testing.T) {
		var hits atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "bad", http.StatusBadRequest)
		}))

		_, err := client.Info(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.BadRequest)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("stops_on_context_cancellation", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.Info(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errs.Unavailable))
	})
}

func TestRequestTimeout(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(t, w, NodeInfo{})
	}), Config{RequestTimeout: 30 * time.Millisecond})

	err := client.getOnce(context.Background(), "/info", nil, &NodeInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Timeout)
}

func TestAPIKeyHeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open-sesame", r.Header.Get("api_key"))
		writeJSON(t, w, NodeInfo{})
	}), Config{APIKey: "open-sesame"})

	_, err := client.Info(context.Background())
	require.NoError(t, err)
}

func TestDifficultyUnmarshal(t *testing.T) {
	testcases := []struct {
		name     string
		payload  string
		expected Difficulty
		wantErr  bool
	}{
		{name: "number", payload: `1234567890`, expected: 1234567890},
		{name: "string", payload: `"1234567890"`, expected: 1234567890},
		{name: "null", payload: `null`, expected: 0},
		{name: "garbage", payload: `"12x"`, wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			var d Difficulty
			err := json.Unmarshal([]byte(tc.payload), &d)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.InvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}
