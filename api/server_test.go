package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/civitas-labs/govern/core"
)

const (
	ownerHex   = "0xff00000000000000000000000000000000001001"
	creatorHex = "0x1100000000000000000000000000000000000001"
	voterAHex  = "0x1100000000000000000000000000000000000002"
	voterBHex  = "0x1100000000000000000000000000000000000003"
)

type testEnv struct {
	server *Server
	ts     *httptest.Server
	clock  uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ledger, err := core.NewLedger(common.HexToAddress(ownerHex), nil, core.DefaultLimits())
	assert.Nil(t, err)

	env := &testEnv{clock: 50}
	env.server = NewServer(ledger, "127.0.0.1:0").WithClock(func() uint64 { return env.clock })
	env.ts = httptest.NewServer(env.server.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, caller string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		assert.Nil(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	assert.Nil(t, err)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}

	resp, err := http.DefaultClient.Do(req)
	assert.Nil(t, err)
	defer resp.Body.Close()

	out := map[string]json.RawMessage{}
	assert.Nil(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestProposalFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/api/proposals", creatorHex, map[string]any{
		"title":       "upgrade runtime",
		"description": "bump the runtime version",
		"mechanism":   "simple",
		"start":       100,
		"end":         200,
		"quorum_bp":   5000,
		"approval_bp": 6000,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var id uint64
	assert.Nil(t, json.Unmarshal(body["id"], &id))
	assert.Equal(t, uint64(1), id)

	base := fmt.Sprintf("/api/proposals/%d", id)

	// voting before the start boundary is rejected
	resp, _ = env.do(t, "POST", base+"/votes", voterAHex, map[string]any{"option": 0, "raw_power": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.clock = 150
	resp, _ = env.do(t, "POST", base+"/votes", voterAHex, map[string]any{"option": 0, "raw_power": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, "POST", base+"/votes", voterBHex, map[string]any{"option": 0, "raw_power": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// double vote maps to 409
	resp, _ = env.do(t, "POST", base+"/votes", voterAHex, map[string]any{"option": 1, "raw_power": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, "GET", base+"/voted/"+voterAHex, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "true", string(body["voted"]))

	env.clock = 201
	resp, _ = env.do(t, "POST", base+"/finalize", creatorHex, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "GET", base+"/winner", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "0", string(body["winner"]))

	resp, body = env.do(t, "GET", base+"/results", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "2", string(body["TotalVotes"]))
}

func TestDelegatedVoteOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, "POST", "/api/proposals", creatorHex, map[string]any{
		"title": "t", "description": "d", "mechanism": "weighted",
		"start": 100, "end": 200, "quorum_bp": 0, "approval_bp": 0,
	})
	var id uint64
	assert.Nil(t, json.Unmarshal(body["id"], &id))

	resp, _ := env.do(t, "POST", "/api/delegation", voterAHex, map[string]any{"delegate": voterBHex})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "GET", "/api/delegation/"+voterAHex+"/resolve", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved string
	assert.Nil(t, json.Unmarshal(body["delegate"], &resolved))
	assert.Equal(t, common.HexToAddress(voterBHex), common.HexToAddress(resolved))

	env.clock = 150
	base := fmt.Sprintf("/api/proposals/%d", id)

	// a third party may not exercise the delegated power
	resp, _ = env.do(t, "POST", base+"/votes/delegated", creatorHex, map[string]any{
		"delegator": voterAHex, "option": 1, "raw_power": 10,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, "POST", base+"/votes/delegated", voterBHex, map[string]any{
		"delegator": voterAHex, "option": 1, "raw_power": 10,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "GET", base+"/options/1/power", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "10", string(body["power"]))
}

func TestPauseOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	// non-owner is refused
	resp, _ := env.do(t, "POST", "/api/admin/pause", creatorHex, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/admin/pause", ownerHex, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/proposals", creatorHex, map[string]any{
		"title": "t", "description": "d", "mechanism": "simple",
		"start": 100, "end": 200, "quorum_bp": 0, "approval_bp": 0,
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/admin/resume", ownerHex, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallerHeaderRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, "POST", "/api/proposals", "", map[string]any{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/proposals", "not-an-address", map[string]any{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPowerProjectionOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/api/power?mechanism=quadratic&raw=10000", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "100", string(body["power"]))

	resp, _ = env.do(t, "GET", "/api/power?mechanism=cubic&raw=10", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
