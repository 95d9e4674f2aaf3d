package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-router/core/agent"
	"github.com/AvaProtocol/ap-router/core/chain"
	"github.com/AvaProtocol/ap-router/core/chainio/erc20"
	"github.com/AvaProtocol/ap-router/core/chainio/permit2"
	"github.com/AvaProtocol/ap-router/core/chainio/wrappednative"
	"github.com/AvaProtocol/ap-router/core/history"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/core/revert"
	"github.com/AvaProtocol/ap-router/core/router"
	"github.com/AvaProtocol/ap-router/metrics"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/pkg/byte4"
	"github.com/AvaProtocol/ap-router/pkg/logger"
)

// knownABIs name the logic calls recorded in history.
var knownABIs = []abi.ABI{
	chain.MustParseABI(erc20.ERC20MetaData.ABI),
	chain.MustParseABI(wrappednative.WrappedNativeMetaData.ABI),
	chain.MustParseABI(permit2.Permit2MetaData.ABI),
	chain.MustParseABI(router.RouterMetaData.ABI),
	chain.MustParseABI(agent.AgentMetaData.ABI),
}

// Service submits transactions to the router on behalf of API callers and
// keeps the node side records of what happened.
type Service struct {
	logger  logger.Logger
	router  *router.Client
	history *history.Repository
	metrics metrics.MetricsGenerator
	agents  *agentCache
	// tokens reported by Balances besides native and wrapped native
	tokens []common.Address
}

type AgentView struct {
	User    common.Address   `json:"user"`
	Agent   common.Address   `json:"agent"`
	Created bool             `json:"created"`
	Stat    *model.AgentStat `json:"stat,omitempty"`
}

type Balance struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

func (s *Service) Execute(ctx context.Context, from common.Address, value *big.Int, req router.ExecuteRequest) (*model.Execution, error) {
	exec := model.NewExecution(from, s.router.CalcAgent(from), model.ExecutionDirect, value)
	exec.Referral = req.Referral
	exec.Methods = describe(req.Logics)

	receipt, err := s.router.Execute(ctx, from, value, req)
	return s.record(exec, receipt, err)
}

func (s *Service) ExecuteSigned(ctx context.Context, from common.Address, value *big.Int, req router.SignedExecuteRequest) (*model.Execution, error) {
	// the signer is the acting user on this path
	exec := model.NewExecution(req.Signer, s.router.CalcAgent(req.Signer), model.ExecutionSigned, value)
	exec.Signer = &req.Signer
	exec.Referral = req.Referral
	exec.Methods = describe(req.Batch.Logics)

	receipt, err := s.router.ExecuteWithSignature(ctx, from, value, req)
	return s.record(exec, receipt, err)
}

func (s *Service) record(exec *model.Execution, receipt *chain.Receipt, execErr error) (*model.Execution, error) {
	if execErr != nil {
		exec.Status = model.ExecutionFailed
		exec.ErrorCode = string(revert.GetErrorCode(execErr))
		exec.Error = execErr.Error()
		s.metrics.IncRevert(exec.ErrorCode)
		s.logger.Info("batch reverted", "user", exec.User.Hex(), "kind", exec.Kind, "code", exec.ErrorCode)
	} else {
		exec.Status = model.ExecutionSuccess
		exec.TxHash = &receipt.TxHash
		exec.BlockNumber = receipt.BlockNumber
		exec.CreatedAt = receipt.Timestamp.UnixMilli()
		exec.Fees = feesOf(s.router.ChargedAmounts(receipt.Logs))

		if event, ok := s.router.FindExecuteEvent(receipt.Logs); ok {
			exec.Agent = event.Agent
			s.indexAgent(event.User, event.Agent, exec.User, receipt)
		}
		s.logger.Info("batch executed", "user", exec.User.Hex(), "kind", exec.Kind, "tx", receipt.TxHash.Hex(), "block", receipt.BlockNumber)
	}
	s.metrics.IncExecution(string(exec.Kind), string(exec.Status))

	if err := s.history.Save(exec); err != nil {
		s.logger.Error("cannot save execution", "id", exec.ID, "error", err)
	}
	return exec, execErr
}

// NewAgent provisions the agent of user, paid by from.
func (s *Service) NewAgent(ctx context.Context, from, user common.Address) (common.Address, error) {
	var (
		addr    common.Address
		receipt *chain.Receipt
		err     error
	)
	if from == user {
		addr, receipt, err = s.router.NewAgent(ctx, from)
	} else {
		addr, receipt, err = s.router.NewAgentFor(ctx, from, user)
	}
	if err != nil {
		return common.Address{}, err
	}
	s.indexAgent(user, addr, from, receipt)
	return addr, nil
}

func (s *Service) indexAgent(user, addr, createdBy common.Address, receipt *chain.Receipt) {
	s.agents.Set(user, addr)

	created, err := s.history.SaveAgent(&model.AgentRecord{
		Owner:     user,
		Address:   addr,
		CreatedBy: createdBy,
		TxHash:    receipt.TxHash,
		CreatedAt: receipt.Timestamp.UnixMilli(),
	})
	if err != nil {
		s.logger.Error("cannot index agent", "user", user.Hex(), "error", err)
		return
	}
	if created {
		s.metrics.IncAgentCreated()
		s.logger.Info("agent created", "user", user.Hex(), "agent", addr.Hex())
	}
}

// GetAgent reports the agent of user and whether it exists yet. A missing
// agent is reported at its predicted address.
func (s *Service) GetAgent(user common.Address) *AgentView {
	view := &AgentView{User: user}
	if addr, ok := s.agents.Get(user); ok {
		view.Agent, view.Created = addr, true
	} else if addr := s.router.GetAgent(user); addr != (common.Address{}) {
		s.agents.Set(user, addr)
		view.Agent, view.Created = addr, true
	} else {
		view.Agent = s.router.CalcAgent(user)
	}

	if stat, err := s.history.UserStat(user); err == nil {
		view.Stat = stat
	}
	return view
}

// Balances reads the native, wrapped native and configured token balances
// of account.
func (s *Service) Balances(ctx context.Context, account common.Address) ([]Balance, error) {
	state := s.router.State()
	balances := []Balance{{Token: logic.NativeToken, Amount: state.BalanceOf(account).String()}}

	info := s.router.Info()
	tokens := lo.Uniq(append([]common.Address{info.WrappedNative}, s.tokens...))
	for _, token := range tokens {
		data, err := erc20.PackBalanceOf(account)
		if err != nil {
			return nil, err
		}
		ret, err := state.Call(ctx, chain.Message{From: account, To: token, Data: data})
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
		}
		amount, err := erc20.UnpackUint256("balanceOf", ret)
		if err != nil {
			return nil, err
		}
		balances = append(balances, Balance{Token: token, Amount: amount.String()})
	}
	return balances, nil
}

func (s *Service) History(user common.Address, limit int) ([]*model.Execution, error) {
	return s.history.List(user, limit)
}

func (s *Service) Execution(id string) (*model.Execution, error) {
	return s.history.Get(id)
}

// AdminAction is one owner or pauser operation on the router.
type AdminAction struct {
	Action  string `json:"action" validate:"required,oneof=pause unpause add_signer remove_signer set_pauser set_fee_collector set_fee_rate transfer_ownership rescue"`
	Address string `json:"address,omitempty" validate:"omitempty,eth_addr"`
	Token   string `json:"token,omitempty" validate:"omitempty,eth_addr"`
	Amount  string `json:"amount,omitempty" validate:"omitempty,uint256"`
	FeeRate uint64 `json:"fee_rate,omitempty"`
}

var errMissingAddress = errors.New("address is required for this action")

// Admin runs action as the router's current owner, or pauser for pausing.
// The node holds both roles of the chain it simulates.
func (s *Service) Admin(ctx context.Context, action AdminAction) (*chain.Receipt, error) {
	info := s.router.Info()
	target := common.HexToAddress(action.Address)
	needsAddress := action.Action != "pause" && action.Action != "unpause" && action.Action != "set_fee_rate"
	if needsAddress && action.Address == "" {
		return nil, errMissingAddress
	}

	s.logger.Info("admin action", "action", action.Action, "address", action.Address)
	switch action.Action {
	case "pause":
		return s.router.Pause(ctx, info.Pauser)
	case "unpause":
		return s.router.Unpause(ctx, info.Pauser)
	case "add_signer":
		return s.router.AddSigner(ctx, info.Owner, target)
	case "remove_signer":
		return s.router.RemoveSigner(ctx, info.Owner, target)
	case "set_pauser":
		return s.router.SetPauser(ctx, info.Owner, target)
	case "set_fee_collector":
		return s.router.SetFeeCollector(ctx, info.Owner, target)
	case "set_fee_rate":
		return s.router.SetFeeRate(ctx, info.Owner, action.FeeRate)
	case "transfer_ownership":
		return s.router.TransferOwnership(ctx, info.Owner, target)
	case "rescue":
		amount, err := model.ParseUint256(action.Amount)
		if err != nil {
			return nil, err
		}
		token := logic.NativeToken
		if action.Token != "" {
			token = common.HexToAddress(action.Token)
		}
		return s.router.Rescue(ctx, info.Owner, token, target, amount)
	}
	return nil, fmt.Errorf("unknown admin action %q", action.Action)
}

// Snapshot feeds the router state collector.
func (s *Service) Snapshot() metrics.RouterSnapshot {
	info := s.router.Info()
	return metrics.RouterSnapshot{
		Paused:  info.Status == router.StatusPaused.String(),
		FeeRate: info.FeeRate,
		Signers: len(info.Signers),
		Agents:  info.Agents,
	}
}

func describe(logics []logic.Logic) []string {
	return lo.Map(logics, func(l logic.Logic, _ int) string {
		return byte4.Describe(l.Data, knownABIs...)
	})
}

func feesOf(charged map[common.Address]*big.Int) []model.Fee {
	fees := make([]model.Fee, 0, len(charged))
	for token, amount := range charged {
		fees = append(fees, model.Fee{Token: token, Amount: amount.String()})
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].Token.Hex() < fees[j].Token.Hex() })
	return fees
}
