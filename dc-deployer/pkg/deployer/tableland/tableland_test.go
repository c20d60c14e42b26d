package tableland

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	registryAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	owner        = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func TestQueryURL(t *testing.T) {
	tests := []struct {
		base      string
		statement string
		want      string
	}{
		{
			base:      "http://localhost:8080/api/v1/",
			statement: "SELECT * FROM daocloud_31337_2",
			want:      "http://localhost:8080/api/v1/query?statement=SELECT%20*%20FROM%20daocloud_31337_2",
		},
		{
			base:      "http://localhost:8080/api/v1/",
			statement: "SELECT count(*) FROM t WHERE name = 'a+b'",
			want:      "http://localhost:8080/api/v1/query?statement=SELECT%20count(*)%20FROM%20t%20WHERE%20name%20%3D%20'a%2Bb'",
		},
		{
			base:      "https://testnets.tableland.network/api/v1",
			statement: "SELECT id FROM t WHERE x = 10",
			want:      "https://testnets.tableland.network/api/v1/query?statement=SELECT%20id%20FROM%20t%20WHERE%20x%20%3D%2010",
		},
	}
	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			require.Equal(t, tt.want, QueryURL(tt.base, tt.statement))
		})
	}
}

func TestTableName(t *testing.T) {
	require.Equal(t, "daocloud_31337_2", TableName("daocloud", 31337, big.NewInt(2)))
	require.Equal(t, "daocloud_1_7", Table{ChainID: 1, TableID: big.NewInt(7)}.Name("daocloud"))
}

func TestTableIDFromReceipt(t *testing.T) {
	mint := &types.Log{
		Address: registryAddr,
		Topics: []common.Hash{
			transferTopic,
			{},
			common.BytesToHash(owner.Bytes()),
			common.BigToHash(big.NewInt(2)),
		},
	}
	transfer := &types.Log{
		Address: registryAddr,
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(owner.Bytes()),
			common.BytesToHash(common.Address{1}.Bytes()),
			common.BigToHash(big.NewInt(1)),
		},
	}
	other := &types.Log{
		Address: common.Address{0xaa},
		Topics:  mint.Topics,
	}

	id, err := TableIDFromReceipt(registryAddr, &types.Receipt{Logs: []*types.Log{other, transfer, mint}})
	require.NoError(t, err)
	require.Equal(t, int64(2), id.Int64())

	_, err = TableIDFromReceipt(registryAddr, &types.Receipt{Logs: []*types.Log{other, transfer}})
	require.ErrorIs(t, err, ErrTableNotFound)
}

// fakeEth answers eth_call for tokensOfOwner(address).
type fakeEth struct {
	t      *testing.T
	tables map[common.Address][]*big.Int
}

func (f *fakeEth) Call(ctx context.Context, msg map[string]any, block *json.RawMessage, overrides *json.RawMessage) (hexutil.Bytes, error) {
	raw, _ := msg["input"].(string)
	if raw == "" {
		raw, _ = msg["data"].(string)
	}
	input, err := hexutil.Decode(raw)
	require.NoError(f.t, err)
	require.Equal(f.t, crypto.Keccak256([]byte("tokensOfOwner(address)"))[:4], input[:4])
	require.Equal(f.t, registryAddr.Hex(), common.HexToAddress(msg["to"].(string)).Hex())

	uint256Slice, err := abi.NewType("uint256[]", "", nil)
	require.NoError(f.t, err)
	ids := f.tables[common.BytesToAddress(input[4:])]
	if ids == nil {
		ids = []*big.Int{}
	}
	return abi.Arguments{{Type: uint256Slice}}.Pack(ids)
}

func TestRegistryListTables(t *testing.T) {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &fakeEth{t: t, tables: map[common.Address][]*big.Int{
		owner: {big.NewInt(1), big.NewInt(2)},
	}}))
	defer srv.Stop()
	cl := rpc.DialInProc(srv)
	defer cl.Close()

	reg := NewRegistry(cl, registryAddr, 31337)
	require.Equal(t, registryAddr, reg.Address())

	tables, err := reg.ListTables(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "daocloud_31337_2", tables[1].Name("daocloud"))

	tables, err = reg.ListTables(context.Background(), common.Address{0xbb})
	require.NoError(t, err)
	require.Empty(t, tables)
}

func TestGatewayQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/query", r.URL.Path)
		switch r.URL.Query().Get("statement") {
		case "SELECT * FROM daocloud_31337_2":
			_, _ = w.Write([]byte(`[{"id":0,"path":"/test3/test.txt","name":"test.txt"}]`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"no such table"}`))
		}
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL + "/api/v1/")
	rows, err := gw.Query(context.Background(), "SELECT * FROM daocloud_31337_2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "/test3/test.txt", rows[0]["path"])

	_, err = gw.Query(context.Background(), "SELECT * FROM nope")
	require.ErrorContains(t, err, "no such table")
}
