package ctlog

import (
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTooShort    = errors.New("leaf input too short")
	ErrUnknownType = errors.New("unknown entry type")
	ErrParseFailed = errors.New("certificate parse failed")
)

// MerkleTreeLeaf layout (RFC 6962 §3.4): version(1) leaf_type(1)
// timestamp(8) entry_type(2) followed by the entry.
const (
	leafHeaderLen = 12
	lengthPrefix  = 3

	entryX509    uint16 = 0
	entryPrecert uint16 = 1
)

// ParsedCertificate holds the fields extracted from a CT log entry that the
// monitor needs for matching and storage.
type ParsedCertificate struct {
	Timestamp  time.Time
	Serial     string
	CommonName string
	SANs       []string
	Issuer     string
}

// ParseLeafInput decodes a MerkleTreeLeaf blob. For precert entries the
// leaf only carries the TBS, so the pre-certificate is read from extraData.
func ParseLeafInput(leaf, extraData []byte) (*ParsedCertificate, error) {
	if len(leaf) < leafHeaderLen+lengthPrefix {
		return nil, ErrTooShort
	}
	ts := binary.BigEndian.Uint64(leaf[2:10])

	der, err := entryDER(binary.BigEndian.Uint16(leaf[10:12]), leaf[leafHeaderLen:], extraData)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return &ParsedCertificate{
		Timestamp:  time.UnixMilli(int64(ts)),
		Serial:     cert.SerialNumber.Text(16),
		CommonName: cert.Subject.CommonName,
		SANs:       cert.DNSNames,
		Issuer:     issuerName(cert),
	}, nil
}

func entryDER(entryType uint16, entry, extraData []byte) ([]byte, error) {
	switch entryType {
	case entryX509:
		return lengthPrefixed(entry, "x509 entry")
	case entryPrecert:
		return lengthPrefixed(extraData, "precert extra_data")
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, entryType)
	}
}

// lengthPrefixed returns the opaque<1..2^24-1> value at the start of b.
func lengthPrefixed(b []byte, what string) ([]byte, error) {
	if len(b) < lengthPrefix {
		return nil, fmt.Errorf("%w: %s has no length", ErrTooShort, what)
	}
	n := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	if len(b) < lengthPrefix+n {
		return nil, fmt.Errorf("%w: %s truncated", ErrTooShort, what)
	}
	return b[lengthPrefix : lengthPrefix+n], nil
}

func issuerName(cert *x509.Certificate) string {
	if cert.Issuer.CommonName != "" {
		return cert.Issuer.CommonName
	}
	if len(cert.Issuer.Organization) > 0 {
		return cert.Issuer.Organization[0]
	}
	return ""
}

// Domains returns the common name followed by the SANs, without repeats.
func (p *ParsedCertificate) Domains() []string {
	seen := make(map[string]struct{}, len(p.SANs)+1)
	domains := make([]string, 0, len(p.SANs)+1)
	for _, d := range append([]string{p.CommonName}, p.SANs...) {
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains
}
