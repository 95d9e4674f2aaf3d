package node

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AvaProtocol/ap-router/core/auth"
	"github.com/AvaProtocol/ap-router/core/history"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/core/router"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/version"
)

const identityKey = "identity"

type HttpJsonResp[T any] struct {
	Data T `json:"data"`
}

// HttpErrorResp is returned for reverted batches. Data carries the recorded
// execution when there is one.
type HttpErrorResp struct {
	Error string      `json:"error"`
	Code  string      `json:"code,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

type RouterInfo struct {
	router.Info
	FeeRatePercent string `json:"fee_rate_percent"`
	Version        string `json:"version"`
}

type AdminResult struct {
	TxHash common.Hash `json:"tx_hash"`
	Router RouterInfo  `json:"router"`
}

type CreateAgentRequest struct {
	// defaults to the caller
	User string `json:"user,omitempty" validate:"omitempty,eth_addr"`
}

func (n *Node) newHttpServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = n.validator

	e.Use(middleware.Logger())
	if n.config.SentryDsn != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic:         true,
			WaitForDelivery: false,
		}))
	}
	e.Use(middleware.Recover())
	e.Use(n.requestMetrics)

	e.GET("/up", func(c echo.Context) error {
		if n.Status() == runningStatus {
			return c.String(http.StatusOK, "up")
		}
		return c.String(http.StatusServiceUnavailable, "pending...")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{})))
	e.POST("/auth/key", n.handleAuthKey)
	e.GET("/router", n.handleRouterInfo)

	e.POST("/execute", n.handleExecute, n.requireKey)
	e.POST("/execute-signed", n.handleExecuteSigned, n.requireKey)
	e.GET("/agents", n.handleListAgents, n.requireKey)
	e.POST("/agents", n.handleCreateAgent, n.requireKey)
	e.GET("/agents/:user", n.handleGetAgent, n.requireKey)
	e.GET("/history/:user", n.handleHistory, n.requireKey)
	e.GET("/executions/:id", n.handleExecution, n.requireKey)
	e.GET("/accounts/:address", n.handleBalances, n.requireKey)
	e.GET("/stats", n.handleStats, n.requireKey)
	e.POST("/admin", n.handleAdmin, n.requireKey)

	return e
}

func (n *Node) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		} else if err != nil {
			status = http.StatusInternalServerError
		}
		n.metrics.IncHttpRequest(c.Path(), strconv.Itoa(status))
		return err
	}
}

// requireKey accepts a user key or an API key as a Bearer token.
func (n *Node) requireKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrorMalformedAuthHeader.Error())
		}

		identity, err := auth.VerifyKey(n.config.JwtSecret, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		c.Set(identityKey, identity)
		return next(c)
	}
}

func identityOf(c echo.Context) *auth.Identity {
	identity, _ := c.Get(identityKey).(*auth.Identity)
	return identity
}

// canRead lets readonly API keys see every user.
func canRead(identity *auth.Identity, user common.Address) bool {
	return identity.CanActFor(user) || slices.Contains(identity.Roles, auth.ReadonlyRole)
}

// actor resolves the account a request transacts from. Only admin keys may
// pick another sender.
func actor(identity *auth.Identity, sender string) (common.Address, error) {
	if sender != "" {
		from := common.HexToAddress(sender)
		if !identity.CanActFor(from) {
			return common.Address{}, echo.NewHTTPError(http.StatusForbidden, "cannot act for "+from.Hex())
		}
		return from, nil
	}
	if identity.Address == nil {
		return common.Address{}, echo.NewHTTPError(http.StatusBadRequest, "sender is required with an api key")
	}
	return *identity.Address, nil
}

func pathAddress(c echo.Context, name string) (common.Address, error) {
	value := c.Param(name)
	if !common.IsHexAddress(value) {
		return common.Address{}, echo.NewHTTPError(http.StatusBadRequest, "invalid address "+value)
	}
	return common.HexToAddress(value), nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// statusOf maps a revert reason to the HTTP status reported for it.
func statusOf(err error) int {
	switch revert.GetErrorCode(err) {
	case revert.CodeUnspecified:
		return http.StatusInternalServerError
	case revert.CodeUnauthorized, revert.CodeInvalidSigner, revert.CodeInvalidSignature:
		return http.StatusForbidden
	case revert.CodePaused, revert.CodeReentrancyOrPaused, revert.CodeAlreadyPaused,
		revert.CodeNotPaused, revert.CodeAgentAlreadyExists, revert.CodeAlreadyInitialized:
		return http.StatusConflict
	case revert.CodeInvalidBps, revert.CodeInvalidOffset, revert.CodeInvalidAddress,
		revert.CodeInvalidPermit2Data, revert.CodeInvalidFeeRate, revert.CodeInvalidAction:
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func revertResponse(c echo.Context, err error, data interface{}) error {
	return c.JSON(statusOf(err), &HttpErrorResp{
		Error: err.Error(),
		Code:  string(revert.GetErrorCode(err)),
		Data:  data,
	})
}

func (n *Node) handleAuthKey(c echo.Context) error {
	var req auth.KeyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	key, err := auth.IssueUserKey(n.config.JwtSecret, &req, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[map[string]string]{Data: map[string]string{"key": key}})
}

func (n *Node) routerInfo() RouterInfo {
	info := n.router.Info()
	return RouterInfo{
		Info:           info,
		FeeRatePercent: model.FormatFeeRate(info.FeeRate),
		Version:        version.Get(),
	}
}

func (n *Node) handleRouterInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, &HttpJsonResp[RouterInfo]{Data: n.routerInfo()})
}

func (n *Node) handleExecute(c echo.Context) error {
	var req model.ExecuteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	from, err := actor(identityOf(c), req.Sender)
	if err != nil {
		return err
	}

	permit2Datas, logics, tokensReturn, value, err := req.Parse()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	exec, err := n.service.Execute(c.Request().Context(), from, value, router.ExecuteRequest{
		Permit2Datas: permit2Datas,
		Logics:       logics,
		TokensReturn: tokensReturn,
		Referral:     req.Referral,
	})
	if err != nil {
		return revertResponse(c, err, exec)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*model.Execution]{Data: exec})
}

func (n *Node) handleExecuteSigned(c echo.Context) error {
	var req model.SignedExecuteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	from, err := actor(identityOf(c), req.Sender)
	if err != nil {
		return err
	}

	permit2Datas, batch, signature, tokensReturn, value, err := req.Parse()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	exec, err := n.service.ExecuteSigned(c.Request().Context(), from, value, router.SignedExecuteRequest{
		Permit2Datas: permit2Datas,
		Batch:        batch,
		Signer:       common.HexToAddress(req.Signer),
		Signature:    signature,
		TokensReturn: tokensReturn,
		Referral:     req.Referral,
	})
	if err != nil {
		return revertResponse(c, err, exec)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*model.Execution]{Data: exec})
}

func (n *Node) handleCreateAgent(c echo.Context) error {
	var req CreateAgentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	identity := identityOf(c)
	if identity.Address == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "creating an agent needs a user key")
	}

	user := *identity.Address
	if req.User != "" {
		user = common.HexToAddress(req.User)
	}
	if _, err := n.service.NewAgent(c.Request().Context(), *identity.Address, user); err != nil {
		return revertResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*AgentView]{Data: n.service.GetAgent(user)})
}

func (n *Node) handleGetAgent(c echo.Context) error {
	user, err := pathAddress(c, "user")
	if err != nil {
		return err
	}
	if !canRead(identityOf(c), user) {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrorUnAuthorized.Error())
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*AgentView]{Data: n.service.GetAgent(user)})
}

func (n *Node) handleListAgents(c echo.Context) error {
	identity := identityOf(c)
	if identity.Address != nil {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrorUnAuthorized.Error())
	}
	agents, err := n.history.ListAgents()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, InternalError)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[[]*model.AgentRecord]{Data: agents})
}

func (n *Node) handleHistory(c echo.Context) error {
	user, err := pathAddress(c, "user")
	if err != nil {
		return err
	}
	if !canRead(identityOf(c), user) {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrorUnAuthorized.Error())
	}

	limit := history.DefaultPageSize
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	executions, err := n.service.History(user, limit)
	if err != nil {
		n.logger.Error("cannot list history", "user", user.Hex(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, InternalError)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[[]*model.Execution]{Data: executions})
}

func (n *Node) handleExecution(c echo.Context) error {
	exec, err := n.service.Execution(c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "execution not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, InternalError)
	}
	if !canRead(identityOf(c), exec.User) {
		// do not leak which ids exist
		return echo.NewHTTPError(http.StatusNotFound, "execution not found")
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*model.Execution]{Data: exec})
}

func (n *Node) handleBalances(c echo.Context) error {
	account, err := pathAddress(c, "address")
	if err != nil {
		return err
	}
	balances, err := n.service.Balances(c.Request().Context(), account)
	if err != nil {
		n.logger.Error("cannot read balances", "account", account.Hex(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, InternalError)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[[]Balance]{Data: balances})
}

func (n *Node) handleStats(c echo.Context) error {
	if identityOf(c).Address != nil {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrorUnAuthorized.Error())
	}
	stats, err := n.history.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, InternalError)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*history.Stats]{Data: stats})
}

func (n *Node) handleAdmin(c echo.Context) error {
	if !identityOf(c).IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrorUnAuthorized.Error())
	}
	var req AdminAction
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	receipt, err := n.service.Admin(c.Request().Context(), req)
	if errors.Is(err, errMissingAddress) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return revertResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[AdminResult]{Data: AdminResult{
		TxHash: receipt.TxHash,
		Router: n.routerInfo(),
	}})
}
