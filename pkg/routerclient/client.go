// Package routerclient talks to a router node over its HTTP API.
package routerclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/AvaProtocol/ap-router/core/auth"
	"github.com/AvaProtocol/ap-router/model"
)

// Client is safe for concurrent use once a key is set.
type Client struct {
	http *resty.Client
}

// APIError is a non 2xx reply from the node.
type APIError struct {
	Status int
	Code   string `json:"code"`
	// set by echo for rejected requests
	Message string `json:"message"`
	// set for reverted batches
	Reason string `json:"error"`
	// the execution recorded for a reverted batch, if any
	Execution *model.Execution `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("node replied %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("node replied %d: %s", e.Status, msg)
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// RouterInfo mirrors the node's /router reply.
type RouterInfo struct {
	Address        common.Address   `json:"address"`
	Owner          common.Address   `json:"owner"`
	Pauser         common.Address   `json:"pauser"`
	FeeCollector   common.Address   `json:"fee_collector"`
	FeeRate        uint64           `json:"fee_rate"`
	FeeRatePercent string           `json:"fee_rate_percent"`
	WrappedNative  common.Address   `json:"wrapped_native"`
	Permit2        common.Address   `json:"permit2"`
	Signers        []common.Address `json:"signers"`
	Status         string           `json:"status"`
	Agents         int              `json:"agents"`
	Version        string           `json:"version"`
}

type Agent struct {
	User    common.Address   `json:"user"`
	Agent   common.Address   `json:"agent"`
	Created bool             `json:"created"`
	Stat    *model.AgentStat `json:"stat,omitempty"`
}

type Balance struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// SetKey authenticates every following request with key.
func (c *Client) SetKey(key string) *Client {
	c.http.SetAuthToken(key)
	return c
}

// Authenticate exchanges a signature of key's owner for a user key valid for
// ttl and installs it.
func (c *Client) Authenticate(ctx context.Context, key *ecdsa.PrivateKey, ttl time.Duration) (string, error) {
	req, err := auth.SignKeyRequest(key, ttl)
	if err != nil {
		return "", err
	}

	var out envelope[map[string]string]
	if err := c.do(ctx, resty.MethodPost, "/auth/key", req, &out); err != nil {
		return "", err
	}
	token := out.Data["key"]
	c.SetKey(token)
	return token, nil
}

func (c *Client) RouterInfo(ctx context.Context) (*RouterInfo, error) {
	var out envelope[*RouterInfo]
	if err := c.do(ctx, resty.MethodGet, "/router", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Execute(ctx context.Context, req *model.ExecuteRequest) (*model.Execution, error) {
	var out envelope[*model.Execution]
	if err := c.do(ctx, resty.MethodPost, "/execute", req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) ExecuteSigned(ctx context.Context, req *model.SignedExecuteRequest) (*model.Execution, error) {
	var out envelope[*model.Execution]
	if err := c.do(ctx, resty.MethodPost, "/execute-signed", req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateAgent provisions the agent of user, or of the caller when user is
// the zero address.
func (c *Client) CreateAgent(ctx context.Context, user common.Address) (*Agent, error) {
	body := map[string]string{}
	if user != (common.Address{}) {
		body["user"] = user.Hex()
	}
	var out envelope[*Agent]
	if err := c.do(ctx, resty.MethodPost, "/agents", body, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetAgent(ctx context.Context, user common.Address) (*Agent, error) {
	var out envelope[*Agent]
	if err := c.do(ctx, resty.MethodGet, "/agents/"+user.Hex(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) History(ctx context.Context, user common.Address, limit int) ([]*model.Execution, error) {
	var out envelope[[]*model.Execution]
	path := "/history/" + user.Hex()
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, resty.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Execution(ctx context.Context, id string) (*model.Execution, error) {
	var out envelope[*model.Execution]
	if err := c.do(ctx, resty.MethodGet, "/executions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Balances(ctx context.Context, account common.Address) ([]Balance, error) {
	var out envelope[[]Balance]
	if err := c.do(ctx, resty.MethodGet, "/accounts/"+account.Hex(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx).SetResult(out)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return parseError(resp)
	}
	return nil
}

func parseError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	raw := resp.Body()
	if err := json.Unmarshal(raw, apiErr); err != nil {
		apiErr.Message = string(raw)
		return apiErr
	}

	var withData struct {
		Data *model.Execution `json:"data"`
	}
	if json.Unmarshal(raw, &withData) == nil {
		apiErr.Execution = withData.Data
	}
	return apiErr
}
