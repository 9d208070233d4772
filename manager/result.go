package manager

// SearchResult is one discovered Kubi: a stable snapshot of the first
// advertisement sighted during a scan window. Unlike raw advertisements it
// stays valid after the window closes, so it can be held and passed to
// ConnectTo later.
type SearchResult struct {
	name    string
	address string
	rssi    int
}

// NewSearchResult builds a result snapshot from advertisement fields.
func NewSearchResult(name, address string, rssi int) *SearchResult {
	return &SearchResult{name: name, address: address, rssi: rssi}
}

// Name returns the advertised device name.
func (r *SearchResult) Name() string { return r.name }

// Address returns the peripheral address to dial.
func (r *SearchResult) Address() string { return r.address }

// RSSI returns the signal strength of the first sighting.
func (r *SearchResult) RSSI() int { return r.rssi }

// KubiID returns the short device id: the last 6 characters of the name, or
// the whole name when it is shorter than that.
func (r *SearchResult) KubiID() string {
	if len(r.name) <= 6 {
		return r.name
	}
	return r.name[len(r.name)-6:]
}
