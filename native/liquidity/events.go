package liquidity

const (
	EventTypeRebalanced     = "liquidity.rebalanced"
	EventTypeFeeRateUpdated = "liquidity.fee_rate_updated"
)
