package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainModel  = "arflow/model/v1"
	DomainSeries = "arflow/series/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelHash computes the content hash of a model declaration.
// Two declarations with equal fields hash identically, regardless of the
// file they were compiled from. The name is NFC-normalized first, so
// visually identical names hash the same.
func ModelHash(decl ModelDecl) (string, error) {
	decl.Name = norm.NFC.String(decl.Name)
	// Struct field order is fixed, so encoding/json output is deterministic.
	data, err := json.Marshal(decl)
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, data), nil
}

// SeriesHash computes the content hash of a time series.
// Negative zero hashes as zero, since SQLite does not keep the sign.
func SeriesHash(ts TimeSeries) (string, error) {
	obs := make([]Observation, len(ts.obs))
	for t, o := range ts.obs {
		if o.Value == 0 {
			o.Value = 0
		}
		obs[t] = o
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return "", fmt.Errorf("SeriesHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSeries, data), nil
}
