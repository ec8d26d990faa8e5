package domain

// PositionType distinguishes investment positions from debt positions.
type PositionType string

const (
	PositionTypeInvestment PositionType = "INVESTMENT"
	PositionTypeDebt       PositionType = "DEBT"
)

// String returns the string representation of PositionType.
func (p PositionType) String() string {
	return string(p)
}

// IsValid checks if the position type is a valid value.
func (p PositionType) IsValid() bool {
	return p == PositionTypeInvestment || p == PositionTypeDebt
}

// TransactionType classifies one logical user action.
type TransactionType string

const (
	TransactionTypeInvest      TransactionType = "INVEST"
	TransactionTypeRedeem      TransactionType = "REDEEM"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeBorrow      TransactionType = "BORROW"
	TransactionTypeRepay       TransactionType = "REPAY"
)

// String returns the string representation of TransactionType.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is a valid value.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeInvest, TransactionTypeRedeem,
		TransactionTypeTransferIn, TransactionTypeTransferOut,
		TransactionTypeBorrow, TransactionTypeRepay:
		return true
	}
	return false
}

// PositionType returns the position type an action of this kind opens or updates.
func (t TransactionType) PositionType() PositionType {
	if t == TransactionTypeBorrow || t == TransactionTypeRepay {
		return PositionTypeDebt
	}
	return PositionTypeInvestment
}

// Token standard, protocol and market classification constants.
const (
	TokenStandardERC20 = "ERC20"

	ProtocolNameUniswapV2 = "UNISWAP_V2"
	ProtocolTypeExchange  = "EXCHANGE"
)

const (
	// AddressZero is the null address used as mint source and burn sink.
	AddressZero = "0x0000000000000000000000000000000000000000"

	// MinimumLiquidity is locked to the null address on the first mint of a pool.
	MinimumLiquidity = 1000

	// UnknownTokenField is stored for name/symbol when the metadata read reverts.
	UnknownTokenField = "unknown"
)
