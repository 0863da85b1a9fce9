package host

import (
	"github.com/roach88/enrichcall/internal/composer"
)

// Snapshot is the observable state of a host.
type Snapshot struct {
	Calls   []CallView    `json:"calls"`
	Pending []ContentView `json:"pending"`
}

// CallView is one call and the content attached to it, if any.
type CallView struct {
	ID       string       `json:"id"`
	Handle   string       `json:"handle"`
	Puts     int          `json:"puts"`
	Enriched *ContentView `json:"enriched,omitempty"`
}

// ContentView is a flattened content record.
type ContentView struct {
	Number   string `json:"number"`
	State    string `json:"state"`
	Subject  string `json:"subject,omitempty"`
	Image    string `json:"image,omitempty"`
	Location string `json:"location,omitempty"`
	Priority string `json:"priority"`
}

func viewOf(rec *composer.Record) *ContentView {
	if rec == nil {
		return nil
	}
	return &ContentView{
		Number:   rec.PhoneNumber,
		State:    rec.State.String(),
		Subject:  rec.Subject(),
		Image:    rec.Image(),
		Location: rec.Location(),
		Priority: rec.Priority().String(),
	}
}

// Snapshot captures calls in registry order and the pending set in
// arrival order. Call it only after Drain.
func (h *Host) Snapshot() Snapshot {
	snap := Snapshot{Calls: []CallView{}, Pending: []ContentView{}}
	for _, c := range h.Calls.MemoryCalls() {
		snap.Calls = append(snap.Calls, CallView{
			ID:       c.ID(),
			Handle:   c.Handle(),
			Puts:     c.PutCount(),
			Enriched: viewOf(h.Correlator.EnrichCallData(c)),
		})
	}
	for _, rec := range h.Correlator.Pending() {
		snap.Pending = append(snap.Pending, *viewOf(rec))
	}
	return snap
}

// Call returns the view of one call.
func (s Snapshot) Call(id string) (CallView, bool) {
	for _, c := range s.Calls {
		if c.ID == id {
			return c, true
		}
	}
	return CallView{}, false
}
