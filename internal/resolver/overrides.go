package resolver

// OverrideRule maps a substring of a normalized awardee name to a ticker, or
// suppresses matching entirely for entities known to be private. Rules are
// evaluated in order; the first pattern contained in the normalized name wins.
type OverrideRule struct {
	Pattern  string
	Ticker   string
	Suppress bool
}

// DefaultOverrides covers federal contractor subsidiaries and trading names
// that resist normalization-based matching.
var DefaultOverrides = []OverrideRule{
	// Aerospace & defense
	{Pattern: "aerojet rocketdyne", Ticker: "LHX"}, // acquired by L3Harris
	{Pattern: "aerojet", Ticker: "LHX"},
	{Pattern: "l3harris", Ticker: "LHX"},
	{Pattern: "l3 harris", Ticker: "LHX"},

	// IT services & consulting
	{Pattern: "accenture federal services", Ticker: "ACN"},
	{Pattern: "accenture federal", Ticker: "ACN"},
	{Pattern: "cgi federal", Ticker: "GIB"},
	{Pattern: "general dynamics information technology", Ticker: "GD"},
	{Pattern: "gdit", Ticker: "GD"},
	{Pattern: "elsevier", Ticker: "RELX"},
	{Pattern: "deloitte consulting", Suppress: true},
	{Pattern: "kpmg", Suppress: true},
	{Pattern: "mckinsey", Suppress: true},

	// Defense contractors
	{Pattern: "booz allen hamilton", Ticker: "BAH"},
	{Pattern: "booz allen", Ticker: "BAH"},
	{Pattern: "parsons government services", Ticker: "PSN"},
	{Pattern: "parsons", Ticker: "PSN"},
	{Pattern: "mantech advanced systems", Ticker: "MANT"},
	{Pattern: "mantech", Ticker: "MANT"},
	{Pattern: "leidos", Ticker: "LDOS"},
	{Pattern: "peraton enterprise", Suppress: true},
	{Pattern: "peraton", Suppress: true}, // delisted

	// Energy & environment
	{Pattern: "ameresco", Ticker: "AMRC"},

	// Corrections & government services
	{Pattern: "geo transport", Ticker: "GEO"},
	{Pattern: "geo group", Ticker: "GEO"},
	{Pattern: "geo reentry", Ticker: "GEO"},
	{Pattern: "corecivic", Ticker: "CXW"},

	// Healthcare
	{Pattern: "emergent biosolutions", Ticker: "EBS"},
	{Pattern: "siga technologies", Ticker: "SIGA"},

	// Primes and other frequent awardees
	{Pattern: "raytheon", Ticker: "RTX"},
	{Pattern: "northrop grumman", Ticker: "NOC"},
	{Pattern: "lockheed martin", Ticker: "LMT"},
	{Pattern: "general dynamics", Ticker: "GD"},
	{Pattern: "boeing", Ticker: "BA"},
	{Pattern: "huntington ingalls", Ticker: "HII"},
	{Pattern: "science applications international", Ticker: "SAIC"},
	{Pattern: "saic", Ticker: "SAIC"},
	{Pattern: "caci international", Ticker: "CACI"},
	{Pattern: "caci nss", Ticker: "CACI"},
	{Pattern: "kratos defense", Ticker: "KTOS"},
	{Pattern: "kratos", Ticker: "KTOS"},
	{Pattern: "bwx technologies", Ticker: "BWXT"},
	{Pattern: "amentum services", Suppress: true},
	{Pattern: "amentum", Suppress: true},
}
