package operation

import (
	"fmt"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// Kind names an operation type in logs, metrics and telemetry.
type Kind string

const (
	KindLnReceive   Kind = "ln_receive"
	KindLnPay       Kind = "ln_pay"
	KindInternalPay Kind = "ln_internal_pay"
	KindDeposit     Kind = "wallet_deposit"
	KindWithdraw    Kind = "wallet_withdraw"
	KindReissue     Kind = "mint_reissue"
)

// Done is the result of kinds whose success carries no data.
type Done struct{}

// LnReceive classifies incoming invoice states.
func LnReceive(e federation.LnReceiveState) Step[Done] {
	switch e.State {
	case federation.LnReceiveClaimed:
		return SuccessWith(Done{})
	case federation.LnReceiveCanceled:
		if e.Reason == "" {
			return FailWith[Done]("invoice canceled")
		}
		return FailWith[Done](e.Reason)
	default:
		return Next[Done]()
	}
}

// LnPay classifies gateway payment states. The result is the preimage.
// Funded is the point after which the gateway owns the payment, so callers
// may stop waiting there.
func LnPay(e federation.LnPayState) Step[string] {
	switch e.State {
	case federation.LnPaySuccess:
		return SuccessWith(e.Preimage)
	case federation.LnPayRefunded:
		return FailWith[string]("Payment was refunded")
	case federation.LnPayCanceled:
		return FailWith[string]("Payment was canceled")
	case federation.LnPayUnexpectedError:
		return FailWith[string]("UnexpectedError: " + e.ErrorMessage)
	case federation.LnPayFunded:
		return MayDetach("")
	default:
		return Next[string]()
	}
}

// InternalPay classifies payments settled inside the federation.
func InternalPay(e federation.InternalPayState) Step[string] {
	switch e.State {
	case federation.InternalPayPreimage:
		return SuccessWith(e.Preimage)
	case federation.InternalPayRefundSuccess:
		return FailWith[string](fmt.Sprintf(
			"Internal payment failed. A refund was issued to %v Error: %s", e.OutPoints, e.Error))
	case federation.InternalPayRefundError:
		return FailWith[string](fmt.Sprintf("RefundError: %s %s", e.ErrorMessage, e.Error))
	case federation.InternalPayFundingFailed:
		return FailWith[string]("FundingFailed: " + e.Error)
	case federation.InternalPayUnexpectedError:
		return FailWith[string](e.ErrorMessage)
	case federation.InternalPayFunding:
		return MayDetach("")
	default:
		return Next[string]()
	}
}

// Deposit classifies peg-in states. The result is the claimed state.
func Deposit(e federation.DepositState) Step[federation.DepositState] {
	switch e.State {
	case federation.DepositClaimed:
		return SuccessWith(e)
	case federation.DepositFailed:
		return FailWith[federation.DepositState]("Deposit failed: " + e.Error)
	default:
		return Next[federation.DepositState]()
	}
}

// Withdraw classifies peg-out states. The result is the txid.
func Withdraw(e federation.WithdrawState) Step[string] {
	switch e.State {
	case federation.WithdrawSucceeded:
		return SuccessWith(e.Txid)
	case federation.WithdrawFailed:
		return FailWith[string]("Withdraw failed: " + e.Error)
	default:
		return Next[string]()
	}
}

// Reissue classifies note reissuance states.
func Reissue(e federation.ReissueState) Step[Done] {
	switch e.State {
	case federation.ReissueDone:
		return SuccessWith(Done{})
	case federation.ReissueFailed:
		return FailWith[Done](e.Error)
	default:
		return Next[Done]()
	}
}

// StateOf returns the state tag of a lifecycle event, or "" for values that
// are not federation events.
func StateOf(event any) string {
	switch e := event.(type) {
	case federation.LnReceiveState:
		return string(e.State)
	case federation.LnPayState:
		return string(e.State)
	case federation.InternalPayState:
		return string(e.State)
	case federation.DepositState:
		return string(e.State)
	case federation.WithdrawState:
		return string(e.State)
	case federation.ReissueState:
		return string(e.State)
	default:
		return ""
	}
}
