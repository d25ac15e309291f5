package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"vaultauction/core/events"
	"vaultauction/core/genesis"
	"vaultauction/core/host"
	"vaultauction/core/state"
	"vaultauction/core/types"
	"vaultauction/native/auction"
	"vaultauction/storage"
)

const testGenesis = `
native:
  - {owner: "label:owner", amount: 1000}
  - {owner: "label:curator", amount: 1000}
  - {owner: "label:alice", amount: 1000}
  - {owner: "label:bob", amount: 1000}
  - {owner: "label:holder", amount: 1000}
mints:
  - {address: "label:usd", authority: "label:curator"}
  - {address: "label:art", authority: "label:curator"}
accounts:
  - {address: "label:alice-usd", mint: "label:usd", owner: "label:alice", amount: 1000}
  - {address: "label:bob-usd", mint: "label:usd", owner: "label:bob", amount: 1000}
  - {address: "label:owner-usd", mint: "label:usd", owner: "label:owner"}
  - {address: "label:holder-usd", mint: "label:usd", owner: "label:holder"}
  - {address: "label:curator-art", mint: "label:art", owner: "label:curator", amount: 1}
  - {address: "label:bob-art", mint: "label:art", owner: "label:bob"}
pricing:
  - {address: "label:pricing", priceMint: "label:usd", pricePerShare: 2, allowedToCombine: true}
vaults:
  - address: "label:vault"
    fractionMint: "label:fractions"
    fractionTreasury: "label:fraction-treasury"
    redeemTreasury: "label:redeem-treasury"
    pricing: "label:pricing"
    authority: "label:curator"
    shares: 100
    boxes:
      - {address: "label:box", source: "label:curator-art", amount: 1}
    distributions:
      - {destination: "label:holder-shares", owner: "label:holder", amount: 40}
    handToAuction: true
`

type rpcReply struct {
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

type testNode struct {
	t        *testing.T
	now      uint64
	handler  http.Handler
	recorder *events.Recorder
}

func addr(t *testing.T, label string) string {
	t.Helper()
	a, err := genesis.ResolveAddress("label:" + label)
	require.NoError(t, err)
	return a.Hex()
}

func newTestNode(t *testing.T, cfg Config) *testNode {
	t.Helper()
	node := &testNode{t: t, now: 1_000, recorder: events.NewRecorder(0)}
	hub := NewHub()
	h := host.New(state.NewStore(storage.NewMemDB()),
		host.WithEmitter(events.Fanout{node.recorder, hub}),
		host.WithClock(host.ClockFunc(func() uint64 { return node.now })))
	var program, vaultProgram types.Address
	program[0], vaultProgram[0] = 0xA0, 0xB0
	svc := auction.NewService(h, auction.ServiceConfig{
		Authority:      auction.AuthorityConfig{ProgramID: program},
		VaultProgram:   vaultProgram,
		StorageDeposit: 1,
	})
	spec, err := genesis.Parse([]byte(testGenesis))
	require.NoError(t, err)
	require.NoError(t, genesis.Apply(context.Background(), svc, spec))
	node.handler = NewServer(svc, cfg, WithRecorder(node.recorder), WithHub(hub)).Handler()
	return node
}

func (n *testNode) callWithToken(token, method string, params interface{}) (*rpcReply, int) {
	n.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(n.t, err)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{raw},
	})
	require.NoError(n.t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	n.handler.ServeHTTP(rec, req)
	var reply rpcReply
	require.NoError(n.t, json.Unmarshal(rec.Body.Bytes(), &reply))
	return &reply, rec.Code
}

func (n *testNode) call(method string, params interface{}) *rpcReply {
	n.t.Helper()
	reply, _ := n.callWithToken("", method, params)
	return reply
}

func (n *testNode) ok(method string, params interface{}, out interface{}) {
	n.t.Helper()
	reply := n.call(method, params)
	require.Nil(n.t, reply.Error, "%s failed: %+v", method, reply.Error)
	if out != nil {
		require.NoError(n.t, json.Unmarshal(reply.Result, out))
	}
}

func (n *testNode) balance(label string) uint64 {
	n.t.Helper()
	var out amountJSON
	n.ok("token_balance", map[string]string{"account": addr(n.t, label)}, &out)
	return out.Amount
}

func TestAuctionLifecycleOverRPC(t *testing.T) {
	n := newTestNode(t, Config{})

	n.ok("auction_init", map[string]string{"signer": addr(t, "owner")}, nil)
	var settings settingsJSON
	n.ok("auction_createSettings", map[string]interface{}{
		"signer":          addr(t, "owner"),
		"duration":        100,
		"softClosePeriod": 10,
		"facilitatorFee":  50_000_000,
	}, &settings)

	var auctionAddr addressJSON
	n.ok("auction_address", map[string]string{"vault": addr(t, "vault")}, &auctionAddr)

	var started auctionJSON
	n.ok("auction_start", map[string]interface{}{
		"signer":        addr(t, "alice"),
		"vault":         addr(t, "vault"),
		"settings":      settings.ID,
		"pricing":       addr(t, "pricing"),
		"payingAccount": addr(t, "alice-usd"),
		"amount":        100,
	}, &started)
	require.Equal(t, auctionAddr.Address, started.ID)
	require.Equal(t, uint64(80), started.ReservePrice)
	require.Equal(t, uint64(1_100), started.EndTimestamp)

	n.now = 1_020
	var bid bidJSON
	n.ok("auction_placeBid", map[string]interface{}{
		"signer":        addr(t, "bob"),
		"auction":       started.ID,
		"payingAccount": addr(t, "bob-usd"),
		"amount":        200,
	}, &bid)
	require.Equal(t, uint64(200), bid.Amount)

	var refunded amountJSON
	n.ok("auction_withdrawBid", map[string]string{
		"signer":      addr(t, "alice"),
		"auction":     started.ID,
		"destination": addr(t, "alice-usd"),
	}, &refunded)
	require.Equal(t, uint64(100), refunded.Amount)
	require.Equal(t, uint64(1_000), n.balance("alice-usd"))

	early := n.call("auction_end", map[string]string{"auction": started.ID, "feeAccount": addr(t, "owner-usd")})
	require.NotNil(t, early.Error)
	require.Equal(t, codeEngineError, early.Error.Code)
	var data EngineErrorData
	require.NoError(t, json.Unmarshal(early.Error.Data, &data))
	require.Equal(t, "AuctionHasNotEnded", data.Name)
	require.Equal(t, "state", data.Category)

	n.now = 1_200
	var fee amountJSON
	n.ok("auction_end", map[string]string{"auction": started.ID, "feeAccount": addr(t, "owner-usd")}, &fee)
	require.Equal(t, uint64(10), fee.Amount)

	var got auctionJSON
	n.ok("auction_get", map[string]string{"id": started.ID}, &got)
	require.Equal(t, string(auction.StatusSettled), got.Status)
	require.Equal(t, addr(t, "bob"), got.TopBidder)

	var paid amountJSON
	n.ok("auction_redeem", map[string]interface{}{
		"signer":          addr(t, "holder"),
		"auction":         started.ID,
		"fractionAccount": addr(t, "holder-shares"),
		"destination":     addr(t, "holder-usd"),
		"amount":          40,
	}, &paid)
	require.Equal(t, uint64(110), paid.Amount)
	require.Equal(t, uint64(190), n.balance("holder-usd"))

	n.ok("auction_claim", map[string]interface{}{
		"signer":           addr(t, "bob"),
		"auction":          started.ID,
		"safetyDepositBox": addr(t, "box"),
		"destination":      addr(t, "bob-art"),
		"amount":           1,
	}, nil)
	require.Equal(t, uint64(1), n.balance("bob-art"))

	var recent []struct {
		Type string `json:"type"`
	}
	n.ok("auction_events", map[string]interface{}{"auction": started.ID, "type": auction.EventTypeEnded}, &recent)
	require.Len(t, recent, 1)
}

func TestRequestValidation(t *testing.T) {
	n := newTestNode(t, Config{})

	reply, status := n.callWithToken("", "auction_nope", map[string]string{})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, reply.Error.Code)

	reply = n.call("auction_init", map[string]string{"signer": "0x12"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	reply = n.call("auction_init", map[string]string{"signer": addr(t, "owner"), "extra": "x"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	n.ok("auction_init", map[string]string{"signer": addr(t, "owner")}, nil)
	reply = n.call("auction_init", map[string]string{"signer": addr(t, "owner")})
	require.Equal(t, codeEngineError, reply.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	n.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	health := httptest.NewRecorder()
	n.handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, health.Code)
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestBearerAuthentication(t *testing.T) {
	const secret = "0123456789abcdef0123"
	n := newTestNode(t, Config{JWTSecret: secret})

	reply, _ := n.callWithToken("", "auction_init", map[string]string{"signer": addr(t, "owner")})
	require.Equal(t, codeUnauthorized, reply.Error.Code)

	_, status := n.callWithToken("garbage", "auction_init", map[string]string{})
	require.Equal(t, http.StatusUnauthorized, status)

	forged := signToken(t, "another-secret-entirely", addr(t, "owner"))
	_, status = n.callWithToken(forged, "auction_init", map[string]string{})
	require.Equal(t, http.StatusUnauthorized, status)

	alice := signToken(t, secret, addr(t, "alice"))
	reply, _ = n.callWithToken(alice, "auction_init", map[string]string{"signer": addr(t, "owner")})
	require.Equal(t, codeUnauthorized, reply.Error.Code)

	owner := signToken(t, secret, addr(t, "owner"))
	reply, _ = n.callWithToken(owner, "auction_init", map[string]string{})
	require.Nil(t, reply.Error)
	var authority authorityJSON
	require.NoError(t, json.Unmarshal(reply.Result, &authority))
	require.Equal(t, addr(t, "owner"), authority.Owner)
}

func TestRateLimit(t *testing.T) {
	n := newTestNode(t, Config{RateLimit: 1, RateBurst: 1})
	_, status := n.callWithToken("", "auction_getAuthority", map[string]string{})
	require.NotEqual(t, http.StatusTooManyRequests, status)
	reply, status := n.callWithToken("", "auction_getAuthority", map[string]string{})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, reply.Error.Code)
}

func TestHubFiltersAndDropsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	mine := hub.subscribe("0xAA")
	other := hub.subscribe("0xbb")
	evt := &types.Event{Type: auction.EventTypeBidPlaced, Attributes: map[string]string{"auction": "0xaa"}}
	hub.Emit(testPayload{evt})
	require.Len(t, mine.ch, 1)
	require.Len(t, other.ch, 0)

	for i := 0; i < wsSubscriberBuffer; i++ {
		hub.Emit(testPayload{evt})
	}
	require.Equal(t, 1, hub.Subscribers())
	hub.unsubscribe(other)
	require.Equal(t, 0, hub.Subscribers())
}

type testPayload struct{ evt *types.Event }

func (p testPayload) EventType() string { return p.evt.Type }
func (p testPayload) Event() *types.Event { return p.evt }
