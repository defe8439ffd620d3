package ctlog

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prefixed encodes b as an opaque value with a 3-byte length.
func prefixed(b []byte) []byte {
	return append([]byte{byte(len(b) >> 16), byte(len(b) >> 8), byte(len(b))}, b...)
}

// buildLeaf constructs a MerkleTreeLeaf blob. For precert entries body is
// placed after a zeroed issuer key hash, the way logs store the TBS.
func buildLeaf(t *testing.T, entryType uint16, body []byte, ts uint64) []byte {
	t.Helper()

	leaf := make([]byte, leafHeaderLen)
	binary.BigEndian.PutUint64(leaf[2:10], ts)
	binary.BigEndian.PutUint16(leaf[10:12], entryType)

	switch entryType {
	case entryX509:
		leaf = append(leaf, prefixed(body)...)
	case entryPrecert:
		leaf = append(leaf, make([]byte, 32)...)
		leaf = append(leaf, prefixed(body)...)
	}
	return leaf
}

// selfSignedCert returns a certificate DER. When issuerOrg is set the
// certificate is signed by a CA whose subject has only that organization.
func selfSignedCert(t *testing.T, cn string, sans []string, issuerOrg string) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     sans,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	parent, signer := tmpl, key

	if issuerOrg != "" {
		caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		caTmpl := &x509.Certificate{
			SerialNumber:          big.NewInt(2),
			Subject:               pkix.Name{Organization: []string{issuerOrg}},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(time.Hour),
			IsCA:                  true,
			BasicConstraintsValid: true,
		}
		caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
		require.NoError(t, err)
		parent, err = x509.ParseCertificate(caDER)
		require.NoError(t, err)
		signer = caKey
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, signer)
	require.NoError(t, err)
	return der
}

func TestParseLeafInput_X509Entry(t *testing.T) {
	der := selfSignedCert(t, "example.com", []string{"www.example.com"}, "")
	ts := uint64(1700000000000)

	pc, err := ParseLeafInput(buildLeaf(t, entryX509, der, ts), nil)
	require.NoError(t, err)

	assert.Equal(t, "example.com", pc.CommonName)
	assert.Equal(t, []string{"www.example.com"}, pc.SANs)
	assert.Equal(t, "example.com", pc.Issuer)
	assert.Equal(t, "1", pc.Serial)
	assert.True(t, pc.Timestamp.Equal(time.UnixMilli(int64(ts))))
}

func TestParseLeafInput_PrecertReadsExtraData(t *testing.T) {
	der := selfSignedCert(t, "precert.example.com", nil, "")
	leaf := buildLeaf(t, entryPrecert, []byte("tbs"), 1700000000000)

	pc, err := ParseLeafInput(leaf, prefixed(der))
	require.NoError(t, err)
	assert.Equal(t, "precert.example.com", pc.CommonName)
}

func TestParseLeafInput_IssuerOrgFallback(t *testing.T) {
	der := selfSignedCert(t, "test.com", nil, "My Org")

	pc, err := ParseLeafInput(buildLeaf(t, entryX509, der, 1700000000000), nil)
	require.NoError(t, err)
	assert.Equal(t, "My Org", pc.Issuer)
}

func TestParseLeafInput_Errors(t *testing.T) {
	truncated := buildLeaf(t, entryX509, make([]byte, 5), 1700000000000)
	truncated[12], truncated[13], truncated[14] = 0, 3, 0xe8 // claims 1000 bytes

	unknown := buildLeaf(t, 99, nil, 1700000000000)
	unknown = append(unknown, 0, 0, 0)

	precert := buildLeaf(t, entryPrecert, []byte("tbs"), 1700000000000)

	tests := []struct {
		name  string
		leaf  []byte
		extra []byte
		want  error
	}{
		{"too short", []byte{0, 0, 0}, nil, ErrTooShort},
		{"unknown entry type", unknown, nil, ErrUnknownType},
		{"truncated x509", truncated, nil, ErrTooShort},
		{"invalid der", buildLeaf(t, entryX509, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 0), nil, ErrParseFailed},
		{"precert without extra_data", precert, nil, ErrTooShort},
		{"precert truncated extra_data", precert, []byte{0, 0, 9, 1}, ErrTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLeafInput(tt.leaf, tt.extra)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParsedCertificate_Domains(t *testing.T) {
	tests := []struct {
		name string
		pc   ParsedCertificate
		want []string
	}{
		{"cn first", ParsedCertificate{CommonName: "a.com", SANs: []string{"b.com"}}, []string{"a.com", "b.com"}},
		{"cn repeated in sans", ParsedCertificate{CommonName: "a.com", SANs: []string{"a.com", "b.com"}}, []string{"a.com", "b.com"}},
		{"no cn", ParsedCertificate{SANs: []string{"b.com", "b.com"}}, []string{"b.com"}},
		{"nothing", ParsedCertificate{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pc.Domains())
		})
	}
}
