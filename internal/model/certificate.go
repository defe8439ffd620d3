package model

import "time"

// CertificateRecord is what the pipeline hands to the store for one
// certificate_update event. MatchedPattern is nil when the event did not match.
type CertificateRecord struct {
	CertIndex      int64
	Domains        []string
	SerialNumber   string
	Issuer         string
	SeenAt         float64
	MatchedPattern *string
}

// StoredCertificate is a row of the certificates table.
type StoredCertificate struct {
	ID             int64     `json:"id"`
	CertIndex      int64     `json:"cert_index"`
	Domains        []string  `json:"domains"`
	SerialNumber   string    `json:"serial_number"`
	Issuer         string    `json:"issuer"`
	SeenAt         float64   `json:"seen_timestamp"`
	StoredAt       time.Time `json:"stored_at"`
	MatchedPattern *string   `json:"matched_pattern"`
	Processed      bool      `json:"processed"`
}
