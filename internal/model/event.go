package model

// MessageType classifies a feed message.
type MessageType string

const (
	MessageHeartbeat         MessageType = "heartbeat"
	MessageCertificateUpdate MessageType = "certificate_update"
	MessageOther             MessageType = "other"
)

// CertificateEvent is one decoded feed notification. It is never mutated
// after the transport constructs it.
type CertificateEvent struct {
	MessageType      MessageType `json:"message_type"`
	CertIndex        int64       `json:"cert_index"`
	Domains          []string    `json:"domains"`
	SerialNumber     string      `json:"serial_number"`
	IssuerCommonName string      `json:"issuer"`
	SeenAt           float64     `json:"seen"`
}

// ParseMessageType maps a wire message_type onto the known set.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case MessageHeartbeat, MessageCertificateUpdate:
		return MessageType(s)
	default:
		return MessageOther
	}
}
