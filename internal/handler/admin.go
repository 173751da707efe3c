package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// InfoResponse summarises one federation client.
type InfoResponse struct {
	Network       string                    `json:"network"`
	Meta          map[string]string         `json:"meta"`
	TotalAmount   federation.Amount         `json:"totalAmountMsat"`
	TotalNotes    int                       `json:"totalNumNotes"`
	Denominations map[federation.Amount]int `json:"denominationsMsat"`
}

// Info reports network, metadata and note holdings of every client.
func (s *Service) Info(ctx context.Context, _ struct{}) (map[federation.ID]InfoResponse, error) {
	info := make(map[federation.ID]InfoResponse)
	for _, c := range s.registry.Clients() {
		resp, err := clientInfo(ctx, c)
		if err != nil {
			return nil, err
		}
		info[c.ID()] = resp
	}
	s.logger.Debug("fetched info for all clients", "clients", len(info))
	return info, nil
}

func clientInfo(ctx context.Context, c federation.Client) (InfoResponse, error) {
	summary, err := c.NoteSummary(ctx)
	if err != nil {
		return InfoResponse{}, Upstream(fmt.Errorf("reading note summary of %s: %w", c.ID(), err))
	}
	return InfoResponse{
		Network:       c.Network(),
		Meta:          c.Meta(),
		TotalAmount:   summary.TotalAmount,
		TotalNotes:    summary.TotalNotes,
		Denominations: summary.Denominations,
	}, nil
}

// BackupRequest uploads an encrypted note snapshot to the federation.
type BackupRequest struct {
	Metadata     map[string]string `json:"metadata"`
	FederationID string            `json:"federationId,omitempty"`
}

// Backup uploads a snapshot of the client's notes with metadata.
func (s *Service) Backup(ctx context.Context, req BackupRequest) (struct{}, error) {
	c, err := s.client(req.FederationID)
	if err != nil {
		return struct{}{}, err
	}
	if req.Metadata == nil {
		req.Metadata = map[string]string{}
	}
	if err := c.Backup(ctx, req.Metadata); err != nil {
		return struct{}{}, Upstream(fmt.Errorf("backing up to federation: %w", err))
	}
	return struct{}{}, nil
}

// Config returns the client configuration of every federation.
func (s *Service) Config(ctx context.Context, _ struct{}) (map[federation.ID]json.RawMessage, error) {
	configs := make(map[federation.ID]json.RawMessage)
	for _, c := range s.registry.Clients() {
		cfg, err := c.ConfigJSON(ctx)
		if err != nil {
			return nil, Upstream(fmt.Errorf("reading config of %s: %w", c.ID(), err))
		}
		configs[c.ID()] = cfg
	}
	return configs, nil
}

// VersionResponse wraps the negotiated API version of one federation.
type VersionResponse struct {
	Version json.RawMessage `json:"version"`
}

// DiscoverVersion negotiates the common API version with every federation.
func (s *Service) DiscoverVersion(ctx context.Context, _ struct{}) (map[federation.ID]VersionResponse, error) {
	versions := make(map[federation.ID]VersionResponse)
	for _, c := range s.registry.Clients() {
		v, err := c.DiscoverAPIVersion(ctx)
		if err != nil {
			return nil, Upstream(fmt.Errorf("discovering api version of %s: %w", c.ID(), err))
		}
		versions[c.ID()] = VersionResponse{Version: v}
	}
	return versions, nil
}

// ModuleRequest calls a module subcommand.
type ModuleRequest struct {
	Module       json.RawMessage `json:"module"`
	Args         []string        `json:"args"`
	FederationID string          `json:"federationId,omitempty"`
}

// Module is the module passthrough. Always NotImplemented.
func (s *Service) Module(_ context.Context, req ModuleRequest) (struct{}, error) {
	if _, err := s.client(req.FederationID); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, NotImplemented("module passthrough")
}

// Restore restores a backup. Always NotImplemented.
func (s *Service) Restore(_ context.Context, _ json.RawMessage) (struct{}, error) {
	if _, err := s.client(""); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, NotImplemented("restore")
}

// ListOperationsRequest pages through the client's operation log.
type ListOperationsRequest struct {
	Limit        int    `json:"limit"`
	FederationID string `json:"federationId,omitempty"`
}

// OperationOutput is one listed operation.
type OperationOutput struct {
	ID           federation.OperationID `json:"id"`
	CreationTime string                 `json:"creationTime"`
	Kind         string                 `json:"operationKind"`
	Meta         json.RawMessage        `json:"operationMeta"`
	Outcome      json.RawMessage        `json:"outcome,omitempty"`
}

// ListOperationsResponse holds the listed operations, newest first.
type ListOperationsResponse struct {
	Operations []OperationOutput `json:"operations"`
}

// ListOperations lists up to Limit recent operations.
func (s *Service) ListOperations(ctx context.Context, req ListOperationsRequest) (ListOperationsResponse, error) {
	if req.Limit < 0 {
		return ListOperationsResponse{}, badRequestf("limit must not be negative")
	}
	c, err := s.client(req.FederationID)
	if err != nil {
		return ListOperationsResponse{}, err
	}
	s.logger.Debug("listing operations", "federation_id", c.ID(), "limit", req.Limit)

	entries, err := c.ListOperations(ctx, req.Limit)
	if err != nil {
		return ListOperationsResponse{}, Upstream(fmt.Errorf("listing operations: %w", err))
	}
	out := ListOperationsResponse{Operations: make([]OperationOutput, 0, len(entries))}
	for _, e := range entries {
		meta := e.Meta
		if len(meta) == 0 {
			meta = json.RawMessage(`null`)
		}
		out.Operations = append(out.Operations, OperationOutput{
			ID:           e.ID,
			CreationTime: e.CreationTime.UTC().Truncate(time.Second).Format(time.RFC3339),
			Kind:         e.Kind,
			Meta:         meta,
			Outcome:      e.Outcome,
		})
	}
	return out, nil
}

// FederationIDsResponse lists every registered federation.
type FederationIDsResponse struct {
	FederationIDs []federation.ID `json:"federationIds"`
}

// FederationIDs lists registered federation ids in registration order.
func (s *Service) FederationIDs(_ context.Context, _ struct{}) (FederationIDsResponse, error) {
	ids := s.registry.IDs()
	if ids == nil {
		ids = []federation.ID{}
	}
	return FederationIDsResponse{FederationIDs: ids}, nil
}

// JoinRequest joins a federation by invite code.
type JoinRequest struct {
	InviteCode string `json:"inviteCode"`

	// UseDefault marks the federation primary for default resolution.
	UseDefault bool `json:"useDefault"`
}

// JoinResponse reports the joined federation and all registered ones.
type JoinResponse struct {
	ThisFederationID federation.ID   `json:"thisFederationId"`
	FederationIDs    []federation.ID `json:"federationIds"`
}

// Join joins a federation. Joining an already-registered federation is not
// an error.
func (s *Service) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	if req.InviteCode == "" {
		return JoinResponse{}, badRequestf("inviteCode is required")
	}
	c, joined, err := s.manager.Join(ctx, req.InviteCode, req.UseDefault)
	if err != nil {
		if errors.Is(err, federation.ErrInvalidInvite) {
			return JoinResponse{}, BadRequest(err)
		}
		return JoinResponse{}, Upstream(fmt.Errorf("joining federation: %w", err))
	}
	s.logger.Debug("join handled", "federation_id", c.ID(), "new", joined)
	return JoinResponse{ThisFederationID: c.ID(), FederationIDs: s.registry.IDs()}, nil
}
