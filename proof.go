package chaingate

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// proofSchema structurally validates decoded JSON proofs before any
// network call is made on their behalf.
const proofSchema = `{
	"type": "object",
	"required": ["txHash"],
	"properties": {
		"txHash": {"type": "string", "pattern": "^0x[0-9a-fA-F]{64}$"},
		"chain": {"type": "string"},
		"token": {"type": "string"},
		"amount": {"type": "string"},
		"timestamp": {"type": "integer"}
	}
}`

var (
	proofSchemaLoader = gojsonschema.NewStringLoader(proofSchema)
	txHashPattern     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// DecodeProof decodes a payment proof header. Three encodings are
// accepted, tried in order: base64-encoded JSON, raw JSON, and a bare
// 0x-prefixed 32-byte transaction hash (which defaults to defaultChain).
// Returns false if the header matches none of them.
//
// Decoding is purely structural; nothing here touches the network.
func DecodeProof(header, defaultChain string) (*PaymentProof, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, false
	}

	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		if proof, ok := proofFromJSON(decoded, defaultChain); ok {
			return proof, true
		}
	}

	if proof, ok := proofFromJSON([]byte(header), defaultChain); ok {
		return proof, true
	}

	if txHashPattern.MatchString(header) {
		return &PaymentProof{TxHash: header, Chain: defaultChain}, true
	}

	return nil, false
}

func proofFromJSON(raw []byte, defaultChain string) (*PaymentProof, bool) {
	if !json.Valid(raw) {
		return nil, false
	}
	result, err := gojsonschema.Validate(proofSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil || !result.Valid() {
		return nil, false
	}
	var proof PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, false
	}
	if proof.Chain == "" {
		proof.Chain = defaultChain
	}
	return &proof, true
}
