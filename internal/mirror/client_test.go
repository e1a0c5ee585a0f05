package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

func TestGetBlockReturnsParsedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/blocks/0x210", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"number":528,"hash":"0xabc","gas_used":21000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	block, err := c.GetBlock(context.Background(), "0x210")
	require.NoError(t, err)
	require.Equal(t, int64(528), block.Number)
	require.Equal(t, "0xabc", block.Hash)
}

func TestClientRetriesOn5xxThenSucceeds(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"number":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 5, log.NewNopLogger())
	block, err := c.GetBlock(context.Background(), "0x1")
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Number)
	require.Equal(t, 3, attempts)
}

func TestClientDoesNotRetry4xx(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"_status":"CONTRACT_REVERT_EXECUTED","message":"revert","data":"0x08c379a0"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 5, log.NewNopLogger())
	_, err := c.PostContractCall(context.Background(), ContractCallRequest{To: "0xabc", Data: "0x"})
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, http.StatusBadRequest, upstreamErr.Status)
	require.True(t, upstreamErr.IsContractRevert())
	require.Equal(t, 1, attempts, "4xx responses must not be retried")
}

func TestClientExhaustsRetriesOnPersistent5xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 2, log.NewNopLogger())
	_, err := c.GetBlock(context.Background(), "0x1")
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, http.StatusInternalServerError, upstreamErr.Status)
}

func TestGetContractStateByAddressAndSlotReturnsNilWhenAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 0, log.NewNopLogger())
	state, err := c.GetContractStateByAddressAndSlot(context.Background(), "0xabc", "0x01", "")
	require.NoError(t, err)
	require.Nil(t, state)
}
