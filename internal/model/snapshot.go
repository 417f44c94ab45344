package model

// Snapshot is the replicated state of one household room: the full set of
// products, categories, and members. Ledger state is deliberately absent —
// every peer derives it locally from the same action stream.
type Snapshot struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	Members    []Member   `json:"members"`
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the original slices.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Products:   make([]Product, len(s.Products)),
		Categories: make([]Category, len(s.Categories)),
		Members:    make([]Member, len(s.Members)),
	}
	copy(out.Products, s.Products)
	copy(out.Categories, s.Categories)
	copy(out.Members, s.Members)
	return out
}
