package domain

// AssetType classifies an RWA pool.
type AssetType string

// Asset types. The first four are the canonical catalog values; the rest are
// accepted for catalogs that still use the older pool taxonomy.
const (
	AssetTypeTreasury   AssetType = "treasury"
	AssetTypeRealEstate AssetType = "real-estate"
	AssetTypeCredit     AssetType = "credit"
	AssetTypeCash       AssetType = "cash"

	AssetTypeBonds    AssetType = "bonds"
	AssetTypeInvoices AssetType = "invoices"
	AssetTypeCashFlow AssetType = "cash-flow"
)

// AssetStatus is the lifecycle status of a pool in the catalog.
type AssetStatus string

const (
	AssetStatusActive   AssetStatus = "Active"
	AssetStatusMaturing AssetStatus = "Maturing"
	AssetStatusPaused   AssetStatus = "Paused"
)

// Asset is an immutable reference record owned by the asset catalog.
type Asset struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           AssetType   `json:"type"`
	APY            float64     `json:"apy"`       // percent, >= 0
	RiskScore      int         `json:"riskScore"` // 0..100
	Price          float64     `json:"price"`     // currency units per share
	Status         AssetStatus `json:"status"`
	TokenAddress   string      `json:"tokenAddress,omitempty"` // RWA token contract
	DurationDays   int         `json:"durationDays"`
	NextPayoutDate string      `json:"nextPayoutDate,omitempty"` // YYYY-MM-DD
}

// AssetTypeLabel returns the human-readable allocation group for an asset type.
func AssetTypeLabel(t AssetType) string {
	switch t {
	case AssetTypeTreasury:
		return "Treasury"
	case AssetTypeRealEstate:
		return "Real Estate"
	case AssetTypeCredit:
		return "Credit"
	case AssetTypeCash:
		return "Cash"
	case AssetTypeBonds:
		return "Bonds"
	case AssetTypeInvoices:
		return "Invoices"
	case AssetTypeCashFlow:
		return "Cash Flow"
	default:
		return string(t)
	}
}

// Risk level labels.
const (
	RiskLevelLow    = "Low"
	RiskLevelMedium = "Medium"
	RiskLevelHigh   = "High"
)

// RiskLevel buckets a 0..100 risk score.
func RiskLevel(score int) string {
	if score <= 20 {
		return RiskLevelLow
	}
	if score <= 45 {
		return RiskLevelMedium
	}
	return RiskLevelHigh
}
