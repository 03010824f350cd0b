package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	for op := OpPlaceOrder; op <= OpGetOpenOrders; op++ {
		assert.Equal(t, op, ParseOperation(op.String()))
	}
	assert.Equal(t, Operation(0), ParseOperation("withdraw"))
	assert.Equal(t, "unknown", Operation(0).String())
}

func TestOperation_PrivateAndFailureText(t *testing.T) {
	assert.False(t, OpGetOrderBook.IsPrivate())
	assert.True(t, OpPlaceOrder.IsPrivate())
	assert.True(t, OpGetOpenOrders.IsPrivate())
	assert.Equal(t, "Failed to place order", OpPlaceOrder.FailureText())
	assert.Equal(t, "Failed to get Order Book", OpGetOrderBook.FailureText())
}

func TestEnums(t *testing.T) {
	assert.True(t, SideSell.Valid())
	assert.False(t, Side("hold").Valid())
	assert.True(t, OrderTypeStopMarket.IsStop())
	assert.False(t, OrderTypeStopMarket.UsesLimitPrice())
	assert.True(t, OrderTypeStopLimit.UsesLimitPrice())
	assert.True(t, TimeInForce("").Valid())
	assert.False(t, TimeInForce("forever").Valid())
	assert.True(t, TriggerMarkPrice.Valid())
	assert.False(t, InstrumentKind("bond").Valid())
}

func TestAuthResponseValidate(t *testing.T) {
	var ok AuthResponse
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","result":{"access_token":"a","refresh_token":"r","expires_in":900,"scope":"session:x"}}`), &ok))
	res, err := ok.Validate()
	require.NoError(t, err)
	assert.Equal(t, "a", res.AccessToken)
	assert.Equal(t, "r", res.RefreshToken)
	assert.Equal(t, 900*time.Second, res.ExpiresIn)

	bad := []string{
		`{"jsonrpc":"2.0"}`,
		`{"result":{"refresh_token":"r","expires_in":900}}`,
		`{"result":{"access_token":"a","expires_in":900}}`,
		`{"result":{"access_token":"a","refresh_token":"r"}}`,
		`{"result":{"access_token":"a","refresh_token":"r","expires_in":0}}`,
		`{"error":{"code":13004,"message":"invalid_credentials"}}`,
	}
	for _, body := range bad {
		var r AuthResponse
		require.NoError(t, json.Unmarshal([]byte(body), &r), body)
		_, err := r.Validate()
		assert.Error(t, err, body)
	}
}

func TestErrorsAreDistinguishable(t *testing.T) {
	err := InvalidParamsf("amount must be positive, got %v", -1)
	assert.True(t, errors.Is(err, ErrInvalidParams))
	assert.False(t, errors.Is(err, ErrTransport))

	rpc := &RPCError{Code: 10009, Message: "not_enough_funds"}
	assert.Equal(t, "deribit error 10009: not_enough_funds", rpc.Error())
}

func TestNewRecord(t *testing.T) {
	start := time.Now()
	rec := NewRecord(&Outcome{
		Operation:  OpCancelOrder,
		RequestID:  "r1",
		RawBody:    NoResponseBody,
		Kind:       FailureAuth,
		Err:        errors.Wrap(ErrRenewalFailed, "refresh token is empty"),
		HTTPStatus: 0,
	}, "/api/v2/private/cancel?order_id=x", start, time.Second)

	assert.Equal(t, "r1", rec.RequestID)
	assert.Equal(t, FailureAuth, rec.Kind)
	assert.Equal(t, NoResponseBody, rec.Body)
	assert.Contains(t, rec.Error, "token renewal failed")
	assert.Equal(t, time.Second, rec.Duration)
}
