package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows algorithm migration.
const (
	DomainSnapshot = "livelist/snapshot/v1"
	DomainList     = "livelist/list/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotDigest returns a content digest of a single record.
func SnapshotDigest(s Snapshot) (string, error) {
	canonical, err := MarshalCanonical(Obj(O("key", String(s.Key)), O("value", s.Value)))
	if err != nil {
		return "", fmt.Errorf("snapshot digest: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// ListDigest returns a digest over an ordered list of records. Two lists have
// the same digest only if they hold the same keys, in the same order, with
// equal values.
func ListDigest(items []Snapshot) (string, error) {
	arr := make(Array, len(items))
	for i, s := range items {
		arr[i] = Obj(O("key", String(s.Key)), O("value", s.Value))
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("list digest: %w", err)
	}
	return hashWithDomain(DomainList, canonical), nil
}
