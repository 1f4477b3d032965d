// Package signal implements the pheromone Signal type and the
// per-process Channel that holds, decays, and scores them. Density is
// derived from the active signal set every tick; crossing the critical
// threshold latches a one-shot phase transition until the next cycle
// reset.
package signal

import "github.com/pheromone-collective/swarm/pkg/wire"

// Signal is a signed, decaying knowledge token. Strength is mutable;
// every other field is set once at construction and never changed
// in-place, except DACommitment which may be written back
// asynchronously when DA_COMMITMENT_WRITEBACK is enabled.
type Signal struct {
	ID             string
	ProducerID     string
	Content        string
	Domain         string
	Confidence     float64
	Strength       float64
	Connections    []string
	Timestamp      int64
	Attestation    string
	ProducerPubkey string
	DACommitment   string
}

// ToWire converts a Signal to its JSON wire representation.
func (s *Signal) ToWire() wire.Signal {
	conns := make([]string, len(s.Connections))
	copy(conns, s.Connections)
	return wire.Signal{
		ID:             s.ID,
		ProducerID:     s.ProducerID,
		Content:        s.Content,
		Domain:         s.Domain,
		Confidence:     s.Confidence,
		Strength:       s.Strength,
		Connections:    conns,
		Timestamp:      s.Timestamp,
		Attestation:    s.Attestation,
		ProducerPubkey: s.ProducerPubkey,
		DACommitment:   s.DACommitment,
	}
}

// FromWire converts a wire.Signal into an internal Signal.
func FromWire(w wire.Signal) *Signal {
	conns := make([]string, len(w.Connections))
	copy(conns, w.Connections)
	return &Signal{
		ID:             w.ID,
		ProducerID:     w.ProducerID,
		Content:        w.Content,
		Domain:         w.Domain,
		Confidence:     w.Confidence,
		Strength:       w.Strength,
		Connections:    conns,
		Timestamp:      w.Timestamp,
		Attestation:    w.Attestation,
		ProducerPubkey: w.ProducerPubkey,
		DACommitment:   w.DACommitment,
	}
}

// Clone returns a deep copy, used whenever a Signal crosses into a
// context that might mutate it independently (e.g. a snapshot handed to
// an HTTP handler).
func (s *Signal) Clone() *Signal {
	cp := *s
	cp.Connections = append([]string(nil), s.Connections...)
	return &cp
}
