// Package identity implements per-agent Ed25519 keypairs and the
// "ed25519:<sig>:<pubkey>" attestation string agents use to sign
// Signals.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Identity is an agent's keypair and derived fingerprint. The private
// key is held only in-process and is never marshalled to JSON.
type Identity struct {
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
	Fingerprint string
}

// New generates a fresh Ed25519 keypair and derives its fingerprint.
// Keypair generation failure is fatal — the caller is expected to exit
// the process on error.
func New() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	return &Identity{
		PublicKey:   pub,
		privateKey:  priv,
		Fingerprint: Fingerprint(pub),
	}, nil
}

// Fingerprint computes the first 16 hex characters of sha256(pubkey).
// The hash is taken over the raw public key bytes (not its hex
// encoding) — the encoding step happens only in PublicKeyHex.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])[:16]
}

// PublicKeyHex returns the hex-encoded public key for transport.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.PublicKey)
}

// payload builds the exact byte sequence that is signed:
// content|producerId|timestamp.
func payload(content, producerID string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", content, producerID, timestamp))
}

// BuildAttestation signs content|producerId|timestamp with the
// identity's private key and returns "ed25519:<sig>:<pubkey>".
func (id *Identity) BuildAttestation(content, producerID string, timestamp int64) string {
	sig := ed25519.Sign(id.privateKey, payload(content, producerID, timestamp))
	return "ed25519:" + hex.EncodeToString(sig) + ":" + id.PublicKeyHex()
}

// VerificationResult is the outcome of verifying an attestation.
type VerificationResult struct {
	Valid       bool
	PublicKey   string
	Fingerprint string
}

// VerifyAttestation recomputes the signed payload from content,
// producerID, and timestamp, parses the three colon-separated fields of
// the attestation string, and verifies the signature. A malformed
// attestation (wrong prefix, wrong field count, bad hex) is reported as
// Valid=false rather than returned as an error — verification is
// advisory: a Signal is never dropped for failing this check, only
// flagged.
func VerifyAttestation(attestation, content, producerID string, timestamp int64) VerificationResult {
	parts := strings.Split(attestation, ":")
	if len(parts) != 3 || parts[0] != "ed25519" {
		return VerificationResult{}
	}

	sig, err := hex.DecodeString(parts[1])
	if err != nil {
		return VerificationResult{}
	}
	pub, err := hex.DecodeString(parts[2])
	if err != nil {
		return VerificationResult{}
	}
	if len(pub) != ed25519.PublicKeySize {
		return VerificationResult{}
	}

	valid := ed25519.Verify(ed25519.PublicKey(pub), payload(content, producerID, timestamp), sig)
	return VerificationResult{
		Valid:       valid,
		PublicKey:   parts[2],
		Fingerprint: Fingerprint(pub),
	}
}
