package rpc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nerrad567/fedimint-http/internal/handler"
)

// Table is the immutable set of methods served by the gateway.
type Table struct {
	methods map[string]Method
}

// NewTable builds a table. Method names must be unique.
func NewTable(methods ...Method) (*Table, error) {
	t := &Table{methods: make(map[string]Method, len(methods))}
	for _, m := range methods {
		if m.name == "" {
			return nil, errors.New("rpc: method without a name")
		}
		if _, dup := t.methods[m.name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMethod, m.name)
		}
		t.methods[m.name] = m
	}
	return t, nil
}

// Lookup returns the method registered under name.
func (t *Table) Lookup(name string) (Method, bool) {
	m, ok := t.methods[name]
	return m, ok
}

// Names lists the registered method names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods returns every gateway method bound to svc.
func Methods(svc *handler.Service) []Method {
	return []Method{
		Single("admin-info", svc.Info),
		Single("admin-backup", svc.Backup),
		Single("admin-config", svc.Config),
		Single("admin-discover-version", svc.DiscoverVersion),
		Single("admin-module", svc.Module),
		Single("admin-restore", svc.Restore),
		Single("admin-list-operations", svc.ListOperations),
		Single("admin-federation-ids", svc.FederationIDs),
		Single("admin-join", svc.Join),

		Single("mint-reissue", svc.Reissue),
		Single("mint-spend", svc.Spend),
		Single("mint-validate", svc.Validate),
		Single("mint-split", svc.Split),
		Single("mint-combine", svc.Combine),
		Subscription("mint-await-reissue", svc.StreamReissue),

		Single("ln-invoice", svc.Invoice),
		Single("ln-pay", svc.Pay),
		Single("ln-list-gateways", svc.ListGateways),
		Single("ln-switch-gateway", svc.SwitchGateway),
		Awaitable("ln-await-invoice", svc.AwaitInvoice, svc.StreamInvoice),
		Awaitable("ln-await-pay", svc.AwaitPay, svc.StreamPay),

		Single("wallet-deposit-address", svc.DepositAddress),
		Awaitable("wallet-await-deposit", svc.AwaitDeposit, svc.StreamDeposit),
		Awaitable("wallet-withdraw", svc.Withdraw, svc.StreamWithdraw),
	}
}

// NewServiceTable builds the table of every gateway method bound to svc.
func NewServiceTable(svc *handler.Service) (*Table, error) {
	return NewTable(Methods(svc)...)
}
