package resolver

import (
	"sort"
	"strings"
)

// merchantTickers is the static merchant-to-ticker table consulted by the
// exact and fuzzy tiers. Keys are normalized (lower-case, trimmed) merchant
// names.
var merchantTickers = map[string]string{
	"amazon":          "AMZN",
	"apple":           "AAPL",
	"chevron":         "CVX",
	"chipotle":        "CMG",
	"costco":          "COST",
	"cvs":             "CVS",
	"delta":           "DAL",
	"disney":          "DIS",
	"dominos":         "DPZ",
	"dunkin":          "DNKN",
	"exxon":           "XOM",
	"fedex":           "FDX",
	"home depot":      "HD",
	"kroger":          "KR",
	"lowes":           "LOW",
	"lyft":            "LYFT",
	"mcdonalds":       "MCD",
	"microsoft":       "MSFT",
	"netflix":         "NFLX",
	"nike":            "NKE",
	"nordstrom":       "JWN",
	"peloton":         "PTON",
	"shake shack":     "SHAK",
	"shell":           "SHEL",
	"southwest":       "LUV",
	"spotify":         "SPOT",
	"starbucks":       "SBUX",
	"target":          "TGT",
	"tesla":           "TSLA",
	"uber":            "UBER",
	"united airlines": "UAL",
	"ups":             "UPS",
	"walgreens":       "WBA",
	"walmart":         "WMT",
	"wendys":          "WEN",
	"whole foods":     "AMZN",
}

// categoryTickers maps a category hint to candidate tickers. The first ticker
// in each list is the category tier's suggestion.
var categoryTickers = map[string][]string{
	"airlines":      {"DAL", "UAL", "LUV"},
	"coffee":        {"SBUX", "DNKN"},
	"electronics":   {"AAPL", "MSFT", "BBY"},
	"entertainment": {"DIS", "NFLX"},
	"fast food":     {"MCD", "CMG", "WEN"},
	"fitness":       {"PTON", "PLNT"},
	"gas":           {"XOM", "CVX", "SHEL"},
	"groceries":     {"KR", "WMT", "COST"},
	"pharmacy":      {"CVS", "WBA"},
	"retail":        {"WMT", "TGT", "AMZN"},
	"rideshare":     {"UBER", "LYFT"},
	"shipping":      {"UPS", "FDX"},
	"streaming":     {"NFLX", "DIS", "SPOT"},
}

// merchantNames holds the table keys in sorted order so fuzzy matching is
// deterministic when a string could match more than one known merchant.
var merchantNames = buildMerchantNames()

func buildMerchantNames() []string {
	names := make([]string, 0, len(merchantTickers))
	for name := range merchantTickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// knownTickers is the set of every ticker appearing in the static tables,
// used by the hint-validation tier.
var knownTickers = buildKnownTickers()

func buildKnownTickers() map[string]struct{} {
	tickers := make(map[string]struct{})
	for _, ticker := range merchantTickers {
		tickers[ticker] = struct{}{}
	}
	for _, list := range categoryTickers {
		for _, ticker := range list {
			tickers[ticker] = struct{}{}
		}
	}
	return tickers
}

// Normalize lower-cases and trims a raw merchant string. Rule patterns are
// stored in this form so lookups and learned rules agree on a key.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
