package agent

import "context"

// runLightStep is the no-LLM mode: a Bernoulli gate on whether to emit
// at all, and a simple dataset-highlight Signal when it fires.
func (l *Loop) runLightStep(ctx context.Context) {
	s := l.State

	gate := 0.45
	if s.Synchronized {
		gate = 0.75
	}
	if l.r.Float64() >= gate {
		return
	}

	topic := s.Domain
	if l.r.Float64() < 0.55 {
		if t := randomAbsorbedDomain(l); t != "" {
			topic = t
		}
	}

	ds, err := l.Datasets.FetchDataset(ctx, topic)
	if err != nil || ds == nil {
		return
	}
	highlight := ds.RandomHighlight(l.r.Intn)
	if highlight == "" {
		return
	}

	confidence := 0.45 + l.r.Float64()*0.3
	l.emit(highlight, topic, confidence, nil, nil)
	s.Credits.EarnFromConfidence(confidence, 10)
}

func randomAbsorbedDomain(l *Loop) string {
	sigs := l.Channel.Signals()
	var candidates []string
	for _, sig := range sigs {
		if l.State.Absorbed[sig.ID] {
			candidates = append(candidates, sig.Domain)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[l.r.Intn(len(candidates))]
}
