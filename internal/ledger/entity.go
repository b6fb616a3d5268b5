// Package ledger stores the local replica of remote ledger records: token
// holdings, NFTs, collections, multi-signature wallets and history.
package ledger

// State is the lifecycle state of a stored record. Records are never
// physically removed by sync; they move to Deleted and back.
type State string

// Record states.
const (
	Active  State = "active"
	Deleted State = "deleted"
)

// Entity is a synced record type. WithState returns a copy in state s.
type Entity[T any] interface {
	EntityID() string
	EntityState() State
	WithState(s State) T
}

// Meta carries the identity and state shared by every record.
type Meta struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

// EntityID returns the record's stable id.
func (m Meta) EntityID() string { return m.ID }

// EntityState returns the record's state. An unset state reads as Active.
func (m Meta) EntityState() State {
	if m.State == "" {
		return Active
	}
	return m.State
}
