package domain

// Compound V2 cToken and Unitroller contracts on Ethereum mainnet.
var CompoundV2 = Market{
	Name:     "compound_v2",
	Protocol: "Compound",
	Contracts: map[string]string{
		"cDAI":       "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643",
		"cUSDC":      "0x39aa39c021dfbae8fac545936693ac917d5e7563",
		"cETH":       "0x4ddc2d193948926d02f9b1fe9e1daa0718270ed5",
		"cWBTC":      "0xccf4429db6322d5c611ee964527d42e5d685dd6a",
		"Unitroller": "0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b",
	},
}

// Compound V3 Comet contracts on Ethereum mainnet.
var CompoundV3 = Market{
	Name:     "compound_v3",
	Protocol: "Compound",
	Contracts: map[string]string{
		"Comet_USDC": "0xc3d688b66703497daa19211eedff47f25384cdc3",
		"Comet_WETH": "0xa17581a9e3356d9a858b789d68b4d866e593ae94",
		"Comet_WBTC": "0x2ee80614ccbc5e28654324a66a396458fa5cd7cc",
	},
}

// DefaultMarkets returns the markets scored when none are configured.
func DefaultMarkets() []Market {
	return []Market{CompoundV2, CompoundV3}
}
