package tracing

// BalanceChangeReason is a description of the reason why a balance was changed.
type BalanceChangeReason int

const (
	BalanceChangeUnspecified BalanceChangeReason = iota
	BalanceChangeCallTransfer
	BalanceChangeCreateEndowment
	BalanceChangeSelfDestruct
	BalanceChangeSelfDestructPayout
	BalanceChangeRefund
)

// NonceChangeReason is a description of the reason why a nonce was changed.
type NonceChangeReason int

const (
	NonceChangeUnspecified NonceChangeReason = iota
	NonceChangeCreateBump
	NonceChangeNewContract
)

// String returns a human-readable string for the reason.
func (r BalanceChangeReason) String() string {
	switch r {
	case BalanceChangeUnspecified:
		return "unspecified"
	case BalanceChangeCallTransfer:
		return "call_transfer"
	case BalanceChangeCreateEndowment:
		return "create_endowment"
	case BalanceChangeSelfDestruct:
		return "self_destruct"
	case BalanceChangeSelfDestructPayout:
		return "self_destruct_payout"
	case BalanceChangeRefund:
		return "refund"
	}
	return "unknown"
}

// String returns a human-readable string for the reason.
func (r NonceChangeReason) String() string {
	switch r {
	case NonceChangeUnspecified:
		return "unspecified"
	case NonceChangeCreateBump:
		return "create_bump"
	case NonceChangeNewContract:
		return "new_contract"
	}
	return "unknown"
}
