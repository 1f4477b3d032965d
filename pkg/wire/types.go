// Package wire contains the JSON wire-format types shared between the
// per-agent HTTP surface, the aggregator, and the persistence layer.
// Every type here is a plain value object.
package wire

// Signal is the wire representation of a pheromone.
type Signal struct {
	ID             string   `json:"id"`
	ProducerID     string   `json:"producerId"`
	Content        string   `json:"content"`
	Domain         string   `json:"domain"`
	Confidence     float64  `json:"confidence"`
	Strength       float64  `json:"strength"`
	Connections    []string `json:"connections"`
	Timestamp      int64    `json:"timestamp"`
	Attestation    string   `json:"attestation"`
	ProducerPubkey string   `json:"producerPubkey,omitempty"`
	DACommitment   string   `json:"daCommitment,omitempty"`
}

// Thought is the wire representation of an agent's reasoning output.
type Thought struct {
	ID               string   `json:"id"`
	ProducerID       string   `json:"producerId"`
	Trigger          string   `json:"trigger"`
	Observation      string   `json:"observation"`
	Reasoning        string   `json:"reasoning"`
	Conclusion       string   `json:"conclusion"`
	SuggestedActions []string `json:"suggestedActions"`
	Confidence       float64  `json:"confidence"`
	Timestamp        int64    `json:"timestamp"`
}

// Decision is the wire representation of an executed decision.
type Decision struct {
	ID         string  `json:"id"`
	ActionType string  `json:"actionType"`
	Priority   float64 `json:"priority"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"`
	FinishedAt int64   `json:"finishedAt,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Identity is the wire representation of an agent's public identity.
type Identity struct {
	AgentID     string `json:"agentId"`
	Name        string `json:"name"`
	PublicKey   string `json:"publicKey"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   int64  `json:"createdAt"`
	TEEMode     bool   `json:"teeMode"`
}

// AttestationView is the response shape of GET /attestation.
type AttestationView struct {
	Identity       Identity `json:"identity"`
	LatestSignal   *Signal  `json:"latestSignal,omitempty"`
	ComputeTier    string   `json:"computeTier"`
	DACommitment   string   `json:"daCommitment,omitempty"`
	VerifiedValid  bool     `json:"verifiedValid"`
	VerifiedPubkey string   `json:"verifiedPubkey,omitempty"`
}

// State is the response shape of GET /state.
type State struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name"`
	Step                    int      `json:"step"`
	Density                 float64  `json:"density"`
	CriticalThreshold       float64  `json:"criticalThreshold"`
	PhaseTransitionOccurred bool     `json:"phaseTransitionOccurred"`
	Synchronized            bool     `json:"synchronized"`
	Discoveries             int      `json:"discoveries"`
	TokensUsed              int      `json:"tokensUsed"`
	TokenBudget             int      `json:"tokenBudget"`
	ThoughtCount            int      `json:"thoughtCount"`
	LatestThought           *Thought `json:"latestThought,omitempty"`
	Identity                Identity `json:"identity"`
	CreditBalance           float64  `json:"creditBalance"`
	CreditTier              string   `json:"creditTier"`
}

// CollectiveMemory is the wire representation of a synthesized report.
type CollectiveMemory struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	Synthesis    string            `json:"synthesis"`
	Contributors []string          `json:"contributors"`
	SignalIDs    []string          `json:"signalIds"`
	Confidence   float64           `json:"confidence"`
	Attestation  string            `json:"attestation"`
	CreatedAt    int64             `json:"createdAt"`
	Report       *CollectiveReport `json:"report,omitempty"`
}

// CollectiveReport is the structured output of the reasoning backend's
// collective-synthesis call.
type CollectiveReport struct {
	Overview     string   `json:"overview"`
	KeyFindings  []string `json:"keyFindings"`
	Opinions     string   `json:"opinions"`
	Improvements []string `json:"improvements"`
	Verdict      string   `json:"verdict"`
}

// InjectRequest is the body of POST /api/inject on the aggregator.
type InjectRequest struct {
	Topic   string `json:"topic,omitempty"`
	Content string `json:"content,omitempty"`
}
