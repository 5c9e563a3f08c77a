// Package ledger implements the block validation state machine: the
// rules that apply a block to the store, derive balances and
// representative weights, and roll a chain back to an earlier point
// when a competing fork is confirmed instead (spec §3, §4.4).
package ledger

import "github.com/tos-network/ralite/internal/bigint"

// Code is the validation outcome of Process (spec §4.4).
type Code int

const (
	Progress Code = iota
	BadSignature
	Old
	NegativeSpend
	Fork
	Unreceivable
	GapPrevious
	GapSource
	NotReceiveFromSend
	AccountMismatch
	OpenedBurnAccount
)

func (c Code) String() string {
	switch c {
	case Progress:
		return "progress"
	case BadSignature:
		return "bad_signature"
	case Old:
		return "old"
	case NegativeSpend:
		return "negative_spend"
	case Fork:
		return "fork"
	case Unreceivable:
		return "unreceivable"
	case GapPrevious:
		return "gap_previous"
	case GapSource:
		return "gap_source"
	case NotReceiveFromSend:
		return "not_receive_from_send"
	case AccountMismatch:
		return "account_mismatch"
	case OpenedBurnAccount:
		return "opened_burn_account"
	default:
		return "unknown"
	}
}

// Result is the full outcome of Process.
type Result struct {
	Code           Code
	Account        bigint.U256
	Amount         bigint.U128
	PendingAccount bigint.U256
}

// BurnAccount is the distinguished all-zero public key (spec §3).
var BurnAccount bigint.U256
