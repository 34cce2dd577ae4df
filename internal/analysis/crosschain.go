package analysis

// crossChainTable maps vulnerability-type keywords to the chains on which
// the behavior diverges. Absence from the table means no annotation.
var crossChainTable = map[string][]string{
	"gas_limit":            {"ethereum", "polygon", "bsc"},
	"block_gas_limit":      {"ethereum", "polygon", "bsc"},
	"timestamp_dependence": {"ethereum", "arbitrum"},
}

// CrossChainImpact returns the chains affected by the given vulnerability
// type, or nil when the type has no chain-dependent behavior.
func CrossChainImpact(vulnType string) []string {
	chains, ok := crossChainTable[vulnType]
	if !ok {
		return nil
	}
	out := make([]string, len(chains))
	copy(out, chains)
	return out
}
