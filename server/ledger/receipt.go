package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
)

var suite = suites.MustFind("Ed25519")

// Signer issues house receipts: Schnorr signatures over an entry's
// canonical bytes, so a player can check an entry was not altered later.
type Signer struct {
	priv kyber.Scalar
	pub  kyber.Point
}

// NewSigner derives the house key from seed. An empty seed picks a random key.
func NewSigner(seed string) *Signer {
	stream := suite.RandomStream()
	if seed != "" {
		stream = suite.XOF([]byte(seed))
	}
	priv := suite.Scalar().Pick(stream)
	return &Signer{priv: priv, pub: suite.Point().Mul(priv, nil)}
}

// PublicKey returns the hex-encoded house public key.
func (s *Signer) PublicKey() string {
	b, err := s.pub.MarshalBinary()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// Sign fills e.Signature.
func (s *Signer) Sign(e Entry) (Entry, error) {
	sig, err := schnorr.Sign(suite, s.priv, canonical(e))
	if err != nil {
		return e, fmt.Errorf("sign ledger entry: %w", err)
	}
	e.Signature = hex.EncodeToString(sig)
	return e, nil
}

// Verify checks e.Signature against the hex public key.
func Verify(pubHex string, e Entry) error {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("unmarshal public key: %w", err)
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return schnorr.Verify(suite, pub, canonical(e), sig)
}

func canonical(e Entry) []byte {
	b := make([]byte, 0, 128)
	b = append(b, e.ID...)
	b = append(b, '|')
	b = append(b, e.SessionID...)
	b = append(b, '|')
	b = append(b, string(e.Kind)...)
	b = append(b, '|')
	b = strconv.AppendInt(b, e.Amount, 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, e.Timestamp.UnixNano(), 10)
	b = append(b, '|')
	b = append(b, e.Reference...)
	return b
}
