package certstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andres10976/certwatch/internal/model"
)

var nowFunc = time.Now

// message mirrors the subset of the CertStream JSON frame the monitor uses.
type message struct {
	MessageType string       `json:"message_type"`
	Data        *messageData `json:"data"`
}

type messageData struct {
	CertIndex *int64   `json:"cert_index"`
	Seen      *float64 `json:"seen"`
	LeafCert  leafCert `json:"leaf_cert"`
}

type leafCert struct {
	AllDomains   []string `json:"all_domains"`
	SerialNumber string   `json:"serial_number"`
	Issuer       struct {
		CN string `json:"CN"`
	} `json:"issuer"`
}

// Decode turns one CertStream frame into an event. Heartbeats and unknown
// message types decode to events carrying only their type.
func Decode(frame []byte) (model.CertificateEvent, error) {
	var msg message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return model.CertificateEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.MessageType == "" {
		return model.CertificateEvent{}, errors.New("frame has no message_type")
	}

	ev := model.CertificateEvent{MessageType: model.ParseMessageType(msg.MessageType)}
	if ev.MessageType != model.MessageCertificateUpdate {
		return ev, nil
	}

	if msg.Data == nil {
		return model.CertificateEvent{}, errors.New("certificate_update without data")
	}
	if msg.Data.CertIndex == nil {
		return model.CertificateEvent{}, errors.New("certificate_update without cert_index")
	}

	ev.CertIndex = *msg.Data.CertIndex
	ev.Domains = msg.Data.LeafCert.AllDomains
	if ev.Domains == nil {
		ev.Domains = []string{}
	}
	ev.SerialNumber = msg.Data.LeafCert.SerialNumber
	ev.IssuerCommonName = msg.Data.LeafCert.Issuer.CN
	if msg.Data.Seen != nil {
		ev.SeenAt = *msg.Data.Seen
	} else {
		ev.SeenAt = float64(nowFunc().UnixNano()) / 1e9
	}
	return ev, nil
}
