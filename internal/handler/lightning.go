package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/lnurl"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

// InvoiceRequest creates an incoming Lightning invoice.
type InvoiceRequest struct {
	AmountMsat  federation.Amount `json:"amountMsat"`
	Description string            `json:"description"`

	// ExpiryTime is the invoice lifetime in seconds.
	ExpiryTime   *uint64 `json:"expiryTime,omitempty"`
	FederationID string  `json:"federationId,omitempty"`
}

// InvoiceResponse carries the created invoice.
type InvoiceResponse struct {
	OperationID federation.OperationID `json:"operationId"`
	Invoice     string                 `json:"invoice"`
}

// Invoice creates a BOLT11 invoice through the active gateway.
func (s *Service) Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	c, err := s.client(req.FederationID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	ln := c.Lightning()
	if _, err := ln.ActiveGateway(ctx); err != nil {
		return InvoiceResponse{}, Upstream(fmt.Errorf("selecting gateway: %w", err))
	}

	var expiry time.Duration
	if req.ExpiryTime != nil {
		expiry = time.Duration(*req.ExpiryTime) * time.Second
	}
	op, invoice, err := ln.CreateInvoice(ctx, req.AmountMsat, req.Description, expiry)
	if err != nil {
		return InvoiceResponse{}, Classify(fmt.Errorf("creating invoice: %w", err))
	}
	return InvoiceResponse{OperationID: op, Invoice: invoice}, nil
}

func (s *Service) receiveEvents(ctx context.Context, req AwaitRequest) (federation.Client, <-chan federation.LnReceiveState, error) {
	if err := requireOperation(req.OperationID); err != nil {
		return nil, nil, err
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return nil, nil, err
	}
	events, err := c.Lightning().SubscribeReceive(ctx, req.OperationID)
	if err != nil {
		return nil, nil, Classify(fmt.Errorf("subscribing to invoice: %w", err))
	}
	return c, events, nil
}

// AwaitInvoice waits until an invoice is paid and claimed, then reports the
// client's holdings.
func (s *Service) AwaitInvoice(ctx context.Context, req AwaitRequest) (InfoResponse, error) {
	c, events, err := s.receiveEvents(ctx, req)
	if err != nil {
		return InfoResponse{}, err
	}
	meta := operation.Meta{Kind: operation.KindLnReceive, Federation: c.ID(), Operation: req.OperationID}
	if _, err := track(ctx, s, meta, events, operation.LnReceive); err != nil {
		return InfoResponse{}, err
	}
	return clientInfo(ctx, c)
}

// StreamInvoice streams the states of an incoming payment.
func (s *Service) StreamInvoice(ctx context.Context, req AwaitRequest, emit Emit) error {
	c, events, err := s.receiveEvents(ctx, req)
	if err != nil {
		return err
	}
	meta := operation.Meta{Kind: operation.KindLnReceive, Federation: c.ID(), Operation: req.OperationID}
	_, err = stream(ctx, s, meta, events, operation.LnReceive, emit)
	return err
}

// PayRequest pays a BOLT11 invoice, LNURL or Lightning Address.
type PayRequest struct {
	PaymentInfo string `json:"paymentInfo"`

	// AmountMsat is required for LNURLs and forbidden for invoices that
	// carry an amount.
	AmountMsat         *federation.Amount `json:"amountMsat,omitempty"`
	FinishInBackground bool               `json:"finishInBackground"`
	LnurlComment       string             `json:"lnurlComment,omitempty"`
	FederationID       string             `json:"federationId,omitempty"`
}

// PayResponse describes a submitted or settled payment.
type PayResponse struct {
	OperationID federation.OperationID `json:"operationId"`
	PaymentType federation.PayType     `json:"paymentType"`
	ContractID  string                 `json:"contractId"`
	Fee         federation.Amount      `json:"fee"`
}

// Pay pays an invoice. With FinishInBackground it returns once the payment
// is funded; otherwise once it settles.
func (s *Service) Pay(ctx context.Context, req PayRequest) (PayResponse, error) {
	c, err := s.client(req.FederationID)
	if err != nil {
		return PayResponse{}, err
	}
	ln := c.Lightning()

	invoice, err := s.resolveInvoice(ctx, ln, req)
	if err != nil {
		return PayResponse{}, err
	}
	s.logger.Info("paying invoice", "payment_hash", invoice.PaymentHash, "federation_id", c.ID())

	if _, err := ln.ActiveGateway(ctx); err != nil {
		return PayResponse{}, Upstream(fmt.Errorf("selecting gateway: %w", err))
	}
	payment, err := ln.Pay(ctx, invoice)
	if err != nil {
		return PayResponse{}, Classify(fmt.Errorf("paying invoice: %w", err))
	}
	s.logger.Info("payment submitted",
		"operation_id", payment.OperationID,
		"payment_type", payment.PayType,
		"fee_msat", uint64(payment.Fee),
	)

	resp := PayResponse{
		OperationID: payment.OperationID,
		PaymentType: payment.PayType,
		ContractID:  payment.ContractID,
		Fee:         payment.Fee,
	}
	if err := s.waitPayment(ctx, c, resp, req.FinishInBackground); err != nil {
		return PayResponse{}, err
	}
	if req.FinishInBackground {
		s.logger.Info("payment will finish in background, use await-pay to get the result",
			"operation_id", resp.OperationID)
	}
	return resp, nil
}

// resolveInvoice turns PaymentInfo into a payable invoice.
func (s *Service) resolveInvoice(ctx context.Context, ln federation.LightningModule, req PayRequest) (federation.Invoice, error) {
	info := strings.TrimSpace(req.PaymentInfo)
	if info == "" {
		return federation.Invoice{}, badRequestf("paymentInfo is required")
	}

	if invoice, err := ln.DecodeInvoice(info); err == nil {
		switch {
		case invoice.Amount != nil && req.AmountMsat != nil:
			return federation.Invoice{}, badRequestf("Amount specified in both invoice and command line")
		case invoice.Amount == nil:
			return federation.Invoice{}, badRequestf("We don't support invoices without an amount")
		}
		return invoice, nil
	}

	if !lnurl.IsLNURL(info) {
		return federation.Invoice{}, badRequestf("Invalid invoice or lnurl")
	}
	target, err := lnurl.Parse(info)
	if err != nil {
		return federation.Invoice{}, BadRequest(fmt.Errorf("Invalid lnurl: %w", err)) //nolint:staticcheck // Message matches the public API
	}
	s.logger.Debug("parsed payment info as lnurl", "url", target.String())
	if req.AmountMsat == nil {
		return federation.Invoice{}, badRequestf("When using a lnurl, an amount must be specified")
	}
	if s.lnurl == nil {
		return federation.Invoice{}, NotImplemented("lnurl payments")
	}

	amount := *req.AmountMsat
	bolt11, err := s.lnurl.Invoice(ctx, target, uint64(amount), req.LnurlComment)
	if err != nil {
		return federation.Invoice{}, Classify(fmt.Errorf("fetching invoice from lnurl: %w", err))
	}
	invoice, err := ln.DecodeInvoice(bolt11)
	if err != nil {
		return federation.Invoice{}, Upstream(fmt.Errorf("lnurl service returned an unusable invoice: %w", err))
	}
	if invoice.Amount == nil || *invoice.Amount != amount {
		return federation.Invoice{}, Upstream(errors.New("lnurl service returned an invoice for the wrong amount"))
	}
	return invoice, nil
}

// waitPayment follows an outgoing payment until it settles, or until it is
// funded when background is set.
func (s *Service) waitPayment(ctx context.Context, c federation.Client, p PayResponse, background bool) error {
	ln := c.Lightning()
	switch p.PaymentType {
	case federation.PayTypeInternal:
		events, err := ln.SubscribeInternalPay(ctx, p.OperationID)
		if err != nil {
			return Upstream(fmt.Errorf("subscribing to internal payment: %w", err))
		}
		meta := operation.Meta{Kind: operation.KindInternalPay, Federation: c.ID(), Operation: p.OperationID}
		_, err = track(ctx, s, meta, events, operation.InternalPay, operation.WithBackground[federation.InternalPayState](background))
		return err
	default:
		events, err := ln.SubscribePay(ctx, p.OperationID)
		if err != nil {
			return Upstream(fmt.Errorf("subscribing to payment: %w", err))
		}
		meta := operation.Meta{Kind: operation.KindLnPay, Federation: c.ID(), Operation: p.OperationID}
		_, err = track(ctx, s, meta, events, operation.LnPay, operation.WithBackground[federation.LnPayState](background))
		return err
	}
}

// AwaitPay waits for a payment started earlier to settle.
func (s *Service) AwaitPay(ctx context.Context, req AwaitRequest) (PayResponse, error) {
	if err := requireOperation(req.OperationID); err != nil {
		return PayResponse{}, err
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return PayResponse{}, err
	}
	payType, contractID, err := c.Lightning().PaymentType(ctx, req.OperationID)
	if err != nil {
		return PayResponse{}, Classify(fmt.Errorf("reading payment details: %w", err))
	}
	resp := PayResponse{OperationID: req.OperationID, PaymentType: payType, ContractID: contractID}
	if err := s.waitPayment(ctx, c, resp, false); err != nil {
		return PayResponse{}, err
	}
	return resp, nil
}

// StreamPay streams the states of an outgoing payment.
func (s *Service) StreamPay(ctx context.Context, req AwaitRequest, emit Emit) error {
	if err := requireOperation(req.OperationID); err != nil {
		return err
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return err
	}
	ln := c.Lightning()
	payType, _, err := ln.PaymentType(ctx, req.OperationID)
	if err != nil {
		return Classify(fmt.Errorf("reading payment details: %w", err))
	}

	if payType == federation.PayTypeInternal {
		events, err := ln.SubscribeInternalPay(ctx, req.OperationID)
		if err != nil {
			return Upstream(fmt.Errorf("subscribing to internal payment: %w", err))
		}
		meta := operation.Meta{Kind: operation.KindInternalPay, Federation: c.ID(), Operation: req.OperationID}
		_, err = stream(ctx, s, meta, events, operation.InternalPay, emit)
		return err
	}
	events, err := ln.SubscribePay(ctx, req.OperationID)
	if err != nil {
		return Upstream(fmt.Errorf("subscribing to payment: %w", err))
	}
	meta := operation.Meta{Kind: operation.KindLnPay, Federation: c.ID(), Operation: req.OperationID}
	_, err = stream(ctx, s, meta, events, operation.LnPay, emit)
	return err
}

// FederationRequest names an optional federation.
type FederationRequest struct {
	FederationID string `json:"federationId,omitempty"`
}

// GatewayInfo is a gateway plus whether it is the active one.
type GatewayInfo struct {
	federation.Gateway
	Active bool `json:"active"`
}

// ListGateways lists registered gateways, marking the active one.
func (s *Service) ListGateways(ctx context.Context, req FederationRequest) ([]GatewayInfo, error) {
	c, err := s.client(req.FederationID)
	if err != nil {
		return nil, err
	}
	ln := c.Lightning()
	gateways, err := ln.ListGateways(ctx)
	if err != nil {
		return nil, Upstream(fmt.Errorf("fetching gateways: %w", err))
	}
	out := make([]GatewayInfo, 0, len(gateways))
	if len(gateways) == 0 {
		return out, nil
	}
	active, err := ln.ActiveGateway(ctx)
	if err != nil {
		return nil, Upstream(fmt.Errorf("selecting gateway: %w", err))
	}
	for _, gw := range gateways {
		out = append(out, GatewayInfo{Gateway: gw, Active: gw.NodePubKey == active.NodePubKey})
	}
	s.logger.Debug("fetched gateways", "federation_id", c.ID(), "count", len(out))
	return out, nil
}

// SwitchGatewayRequest selects the active gateway.
type SwitchGatewayRequest struct {
	GatewayID    string `json:"gatewayId"`
	FederationID string `json:"federationId,omitempty"`
}

// SwitchGateway makes GatewayID the active gateway.
func (s *Service) SwitchGateway(ctx context.Context, req SwitchGatewayRequest) (GatewayInfo, error) {
	if strings.TrimSpace(req.GatewayID) == "" {
		return GatewayInfo{}, badRequestf("gatewayId is required")
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return GatewayInfo{}, err
	}
	gw, err := c.Lightning().SetActiveGateway(ctx, req.GatewayID)
	if err != nil {
		return GatewayInfo{}, Classify(fmt.Errorf("switching gateway: %w", err))
	}
	s.logger.Info("active gateway switched", "federation_id", c.ID(), "gateway_id", gw.ID)
	return GatewayInfo{Gateway: gw, Active: true}, nil
}
