package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

// DepositAddressRequest asks for a fresh peg-in address.
type DepositAddressRequest struct {
	// Timeout is the address lifetime in seconds.
	Timeout      uint64 `json:"timeout"`
	FederationID string `json:"federationId,omitempty"`
}

// DepositAddressResponse carries the address and its deposit operation.
type DepositAddressResponse struct {
	Address     string                 `json:"address"`
	OperationID federation.OperationID `json:"operationId"`
}

// DepositAddress creates a deposit address valid for Timeout seconds.
func (s *Service) DepositAddress(ctx context.Context, req DepositAddressRequest) (DepositAddressResponse, error) {
	c, err := s.client(req.FederationID)
	if err != nil {
		return DepositAddressResponse{}, err
	}
	validUntil := time.Now().Add(time.Duration(req.Timeout) * time.Second)
	op, address, err := c.Wallet().DepositAddress(ctx, validUntil)
	if err != nil {
		return DepositAddressResponse{}, Classify(fmt.Errorf("creating deposit address: %w", err))
	}
	return DepositAddressResponse{Address: address, OperationID: op}, nil
}

func (s *Service) depositEvents(ctx context.Context, req AwaitRequest) (federation.Client, <-chan federation.DepositState, error) {
	if err := requireOperation(req.OperationID); err != nil {
		return nil, nil, err
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return nil, nil, err
	}
	events, err := c.Wallet().SubscribeDeposit(ctx, req.OperationID)
	if err != nil {
		return nil, nil, Classify(fmt.Errorf("subscribing to deposit: %w", err))
	}
	return c, events, nil
}

// AwaitDepositResponse carries the final deposit state.
type AwaitDepositResponse struct {
	Status federation.DepositState `json:"status"`
}

// AwaitDeposit waits until a deposit is claimed.
func (s *Service) AwaitDeposit(ctx context.Context, req AwaitRequest) (AwaitDepositResponse, error) {
	c, events, err := s.depositEvents(ctx, req)
	if err != nil {
		return AwaitDepositResponse{}, err
	}
	meta := operation.Meta{Kind: operation.KindDeposit, Federation: c.ID(), Operation: req.OperationID}
	out, err := track(ctx, s, meta, events, operation.Deposit)
	if err != nil {
		return AwaitDepositResponse{}, err
	}
	return AwaitDepositResponse{Status: out.Result}, nil
}

// StreamDeposit streams the states of a deposit.
func (s *Service) StreamDeposit(ctx context.Context, req AwaitRequest, emit Emit) error {
	c, events, err := s.depositEvents(ctx, req)
	if err != nil {
		return err
	}
	meta := operation.Meta{Kind: operation.KindDeposit, Federation: c.ID(), Operation: req.OperationID}
	_, err = stream(ctx, s, meta, events, operation.Deposit, emit)
	return err
}

// AmountOrAll is a satoshi amount or the whole balance. It decodes from a
// number, a numeric string or "all".
type AmountOrAll struct {
	All  bool
	Sats uint64
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AmountOrAll) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = AmountOrAll{Sats: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a number of sats or \"all\"")
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		*a = AmountOrAll{All: true}
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("amount must be a number of sats or \"all\"")
	}
	*a = AmountOrAll{Sats: n}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a AmountOrAll) MarshalJSON() ([]byte, error) {
	if a.All {
		return []byte(`"all"`), nil
	}
	return json.Marshal(a.Sats)
}

// WithdrawRequest pegs out to an on-chain address.
type WithdrawRequest struct {
	Address      string      `json:"address"`
	AmountSat    AmountOrAll `json:"amountSat"`
	FederationID string      `json:"federationId,omitempty"`
}

// WithdrawResponse carries the broadcast transaction.
type WithdrawResponse struct {
	Txid    string `json:"txid"`
	FeesSat uint64 `json:"feesSat"`
}

type withdrawal struct {
	client federation.Client
	op     federation.OperationID
	fees   uint64
	events <-chan federation.WithdrawState
}

func (s *Service) startWithdraw(ctx context.Context, req WithdrawRequest) (withdrawal, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return withdrawal{}, badRequestf("address is required")
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return withdrawal{}, err
	}
	wallet := c.Wallet()

	var (
		sats uint64
		fees federation.WithdrawFees
	)
	if req.AmountSat.All {
		balance, err := c.Balance(ctx)
		if err != nil {
			return withdrawal{}, Upstream(fmt.Errorf("reading balance: %w", err))
		}
		sats = balance.Sats()
		if fees, err = wallet.WithdrawFees(ctx, address, sats); err != nil {
			return withdrawal{}, Classify(fmt.Errorf("quoting withdraw fees: %w", err))
		}
		if fees.Sats() >= sats {
			return withdrawal{}, badRequestf("Insufficient balance to pay fees")
		}
		sats -= fees.Sats()
	} else {
		if req.AmountSat.Sats == 0 {
			return withdrawal{}, badRequestf("amountSat must be positive")
		}
		sats = req.AmountSat.Sats
		if fees, err = wallet.WithdrawFees(ctx, address, sats); err != nil {
			return withdrawal{}, Classify(fmt.Errorf("quoting withdraw fees: %w", err))
		}
	}
	s.logger.Info("attempting withdraw",
		"federation_id", c.ID(),
		"amount_sat", sats,
		"fee_sat", fees.Sats(),
		"fee_rate_sats_per_kvb", fees.FeeRateSatsPerKVB,
	)

	op, err := wallet.Withdraw(ctx, address, sats, fees)
	if err != nil {
		return withdrawal{}, Classify(fmt.Errorf("withdrawing: %w", err))
	}
	events, err := wallet.SubscribeWithdraw(ctx, op)
	if err != nil {
		return withdrawal{}, Upstream(fmt.Errorf("subscribing to withdrawal: %w", err))
	}
	return withdrawal{client: c, op: op, fees: fees.Sats(), events: events}, nil
}

// Withdraw pegs out and waits for the transaction id.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResponse, error) {
	w, err := s.startWithdraw(ctx, req)
	if err != nil {
		return WithdrawResponse{}, err
	}
	meta := operation.Meta{Kind: operation.KindWithdraw, Federation: w.client.ID(), Operation: w.op}
	out, err := track(ctx, s, meta, w.events, operation.Withdraw)
	if err != nil {
		return WithdrawResponse{}, err
	}
	return WithdrawResponse{Txid: out.Result, FeesSat: w.fees}, nil
}

// StreamWithdraw pegs out and streams the withdrawal states.
func (s *Service) StreamWithdraw(ctx context.Context, req WithdrawRequest, emit Emit) error {
	w, err := s.startWithdraw(ctx, req)
	if err != nil {
		return err
	}
	meta := operation.Meta{Kind: operation.KindWithdraw, Federation: w.client.ID(), Operation: w.op}
	_, err = stream(ctx, s, meta, w.events, operation.Withdraw, emit)
	return err
}
