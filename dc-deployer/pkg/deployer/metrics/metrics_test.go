package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestRecordTx(t *testing.T) {
	m := NewMetrics("local-tableland")
	m.RecordTx("createTable", &types.Receipt{GasUsed: 50_000}, nil)
	m.RecordTx("touch", &types.Receipt{GasUsed: 30_000}, errors.New("reverted"))
	m.RecordTx("rm", nil, errors.New("rpc down"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.txTotal.WithLabelValues("createTable", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txTotal.WithLabelValues("touch", "reverted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txTotal.WithLabelValues("rm", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.info.WithLabelValues("local-tableland")))
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics("local-tableland")
	m.RecordTx("createTable", &types.Receipt{GasUsed: 50_000}, nil)
	require.NoError(t, m.Push(context.Background(), srv.URL, "dc-deployer"))
	require.Equal(t, "/metrics/job/dc-deployer", gotPath)
	// the body is protobuf encoded, the metric names appear verbatim
	require.True(t, strings.Contains(gotBody, "dc_deployer_transactions_total"))
}
