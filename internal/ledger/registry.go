package ledger

import "sort"

// SupportRegistry holds the allow-lists of payout corridors: ISO country
// codes and mobile-money provider codes. It belongs to one ledger instance
// and is guarded by the ledger's lock; owner-only mutation is enforced by
// the ledger methods that reach it.
type SupportRegistry struct {
	countries map[string]bool
	providers map[string]bool
}

func newSupportRegistry(countries, providers []string) *SupportRegistry {
	r := &SupportRegistry{
		countries: make(map[string]bool, len(countries)),
		providers: make(map[string]bool, len(providers)),
	}
	for _, c := range countries {
		r.countries[c] = true
	}
	for _, p := range providers {
		r.providers[p] = true
	}
	return r
}

func (r *SupportRegistry) countrySupported(code string) bool {
	return r.countries[code]
}

func (r *SupportRegistry) providerSupported(code string) bool {
	return r.providers[code]
}

func (r *SupportRegistry) setCountry(code string, supported bool) {
	if supported {
		r.countries[code] = true
		return
	}
	delete(r.countries, code)
}

func (r *SupportRegistry) setProvider(code string, supported bool) {
	if supported {
		r.providers[code] = true
		return
	}
	delete(r.providers, code)
}

func (r *SupportRegistry) countryList() []string {
	return sortedKeys(r.countries)
}

func (r *SupportRegistry) providerList() []string {
	return sortedKeys(r.providers)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
