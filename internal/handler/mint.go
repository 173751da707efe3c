package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

// NotesRequest carries an encoded note bundle.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// AmountResponse reports a note value.
type AmountResponse struct {
	AmountMsat federation.Amount `json:"amountMsat"`
}

// Reissue redeems notes into the issuing federation's wallet and waits for
// the reissuance to finish.
func (s *Service) Reissue(ctx context.Context, req NotesRequest) (AmountResponse, error) {
	notes, err := s.decodeNotes(req.Notes)
	if err != nil {
		return AmountResponse{}, err
	}
	c, err := s.clientForNotes(notes)
	if err != nil {
		return AmountResponse{}, err
	}

	op, err := c.Mint().Reissue(ctx, notes)
	if err != nil {
		return AmountResponse{}, Classify(fmt.Errorf("reissuing notes: %w", err))
	}
	events, err := c.Mint().SubscribeReissue(ctx, op)
	if err != nil {
		return AmountResponse{}, Upstream(fmt.Errorf("subscribing to reissuance: %w", err))
	}
	meta := operation.Meta{Kind: operation.KindReissue, Federation: c.ID(), Operation: op}
	if _, err := track(ctx, s, meta, events, operation.Reissue); err != nil {
		return AmountResponse{}, err
	}
	return AmountResponse{AmountMsat: notes.Total()}, nil
}

// AwaitRequest names an operation of a federation client.
type AwaitRequest struct {
	OperationID  federation.OperationID `json:"operationId"`
	FederationID string                 `json:"federationId,omitempty"`
}

// StreamReissue streams the states of a reissuance.
func (s *Service) StreamReissue(ctx context.Context, req AwaitRequest, emit Emit) error {
	if err := requireOperation(req.OperationID); err != nil {
		return err
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return err
	}
	events, err := c.Mint().SubscribeReissue(ctx, req.OperationID)
	if err != nil {
		return Classify(fmt.Errorf("subscribing to reissuance: %w", err))
	}
	meta := operation.Meta{Kind: operation.KindReissue, Federation: c.ID(), Operation: req.OperationID}
	_, err = stream(ctx, s, meta, events, operation.Reissue, emit)
	return err
}

// SpendRequest takes notes out of the wallet.
type SpendRequest struct {
	AmountMsat   federation.Amount `json:"amountMsat"`
	AllowOverpay bool              `json:"allowOverpay"`

	// Timeout is seconds until unclaimed notes are reclaimed.
	Timeout      uint64 `json:"timeout"`
	FederationID string `json:"federationId,omitempty"`
}

// SpendResponse carries the spent notes.
type SpendResponse struct {
	Operation federation.OperationID `json:"operation"`
	Notes     string                 `json:"notes"`
}

// Spend selects notes worth at least AmountMsat and returns them encoded.
func (s *Service) Spend(ctx context.Context, req SpendRequest) (SpendResponse, error) {
	if req.AmountMsat == 0 {
		return SpendResponse{}, badRequestf("amountMsat must be positive")
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return SpendResponse{}, err
	}

	timeout := time.Duration(req.Timeout) * time.Second
	s.logger.Warn("the client will try to double-spend these notes after the timeout to recover any unclaimed e-cash",
		"timeout", timeout.String())

	op, notes, err := c.Mint().Spend(ctx, req.AmountMsat, req.AllowOverpay, timeout)
	if err != nil {
		return SpendResponse{}, Classify(fmt.Errorf("spending notes: %w", err))
	}
	if total := notes.Total(); total > req.AmountMsat {
		s.logger.Warn("selected notes worth more than requested", "overspend_msat", uint64(total-req.AmountMsat))
	}
	encoded, err := s.backend.EncodeNotes(notes)
	if err != nil {
		return SpendResponse{}, Internal(fmt.Errorf("encoding notes: %w", err))
	}
	s.logger.Info("spend e-cash operation", "operation_id", op, "federation_id", c.ID())
	return SpendResponse{Operation: op, Notes: encoded}, nil
}

// Validate checks notes against the issuing federation.
func (s *Service) Validate(ctx context.Context, req NotesRequest) (AmountResponse, error) {
	notes, err := s.decodeNotes(req.Notes)
	if err != nil {
		return AmountResponse{}, err
	}
	c, err := s.clientForNotes(notes)
	if err != nil {
		return AmountResponse{}, err
	}
	amount, err := c.Mint().Validate(ctx, notes)
	if err != nil {
		return AmountResponse{}, Classify(fmt.Errorf("validating notes: %w", err))
	}
	return AmountResponse{AmountMsat: amount}, nil
}

// SplitResponse maps each denomination to single-note bundles.
type SplitResponse struct {
	Notes map[federation.Amount][]string `json:"notes"`
}

// Split breaks a bundle into one bundle per note, grouped by denomination.
func (s *Service) Split(_ context.Context, req NotesRequest) (SplitResponse, error) {
	notes, err := s.decodeNotes(req.Notes)
	if err != nil {
		return SplitResponse{}, err
	}
	out := SplitResponse{Notes: make(map[federation.Amount][]string)}
	for _, n := range notes.Items {
		single := federation.Notes{Federation: notes.Federation, Items: []federation.Note{n}}
		encoded, err := s.backend.EncodeNotes(single)
		if err != nil {
			return SplitResponse{}, Internal(fmt.Errorf("encoding notes: %w", err))
		}
		out.Notes[n.Amount] = append(out.Notes[n.Amount], encoded)
	}
	return out, nil
}

// CombineRequest carries bundles to merge.
type CombineRequest struct {
	Notes []string `json:"notes"`
}

// CombineResponse carries the merged bundle.
type CombineResponse struct {
	Notes string `json:"notes"`
}

// Combine merges bundles of the same federation into one.
func (s *Service) Combine(_ context.Context, req CombineRequest) (CombineResponse, error) {
	if len(req.Notes) == 0 {
		return CombineResponse{}, badRequestf("notes are required")
	}
	var combined federation.Notes
	for i, raw := range req.Notes {
		notes, err := s.decodeNotes(raw)
		if err != nil {
			return CombineResponse{}, err
		}
		if i == 0 {
			combined.Federation = notes.Federation
		} else if notes.Federation != combined.Federation {
			return CombineResponse{}, badRequestf("E-cash notes strings from different federations: %q and %q",
				combined.Federation, notes.Federation)
		}
		combined.Items = append(combined.Items, notes.Items...)
	}
	encoded, err := s.backend.EncodeNotes(combined)
	if err != nil {
		return CombineResponse{}, Internal(fmt.Errorf("encoding notes: %w", err))
	}
	return CombineResponse{Notes: encoded}, nil
}
