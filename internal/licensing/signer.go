package licensing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Payload is the canonical validation response. Field order is part of the
// wire contract: external verifiers recompute the HMAC over this exact
// serialization, so any change to the set or order must be versioned.
type Payload struct {
	Valid               bool    `json:"valid"`
	UserID              string  `json:"userId"`
	Username            string  `json:"username"`
	Role                int16   `json:"role"`
	RoleLabel           string  `json:"roleLabel"`
	KeyCreatedAt        *string `json:"keyCreatedAt"`
	BoundToDevice       bool    `json:"boundToDevice"`
	SubscriptionActive  bool    `json:"subscriptionActive"`
	SubscriptionStatus  string  `json:"subscriptionStatus"`
	SubscriptionEndDate *string `json:"subscriptionEndDate"`
	ProgramLimit        int     `json:"programLimit"`
	Timestamp           int64   `json:"timestamp"`
}

// SignedPayload is the payload plus its hex-encoded HMAC-SHA256 signature.
type SignedPayload struct {
	Payload
	Signature string `json:"signature"`
}

// Signer produces tamper-evident validation responses. The secret is loaded
// once at startup and never leaves the process.
type Signer struct {
	secret []byte
}

// NewSigner constructs a signer from the configured secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign serializes the canonical payload and appends its signature.
func (s *Signer) Sign(payload Payload) (*SignedPayload, error) {
	signature, err := s.compute(payload)
	if err != nil {
		return nil, err
	}
	return &SignedPayload{Payload: payload, Signature: signature}, nil
}

// Verify recomputes the signature over the payload and compares it in
// constant time.
func (s *Signer) Verify(payload Payload, signature string) (bool, error) {
	expected, err := s.compute(payload)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1, nil
}

func (s *Signer) compute(payload Payload) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize payload: %w", err)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
