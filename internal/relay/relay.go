// Package relay forwards live certificate events to a downstream consumer as
// prefixed single-line JSON messages.
package relay

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andres10976/certwatch/internal/model"
)

// Prefix marks a relay line on the output channel. The JSON payload follows
// immediately with no separator.
const Prefix = "__CERT_EVENT__"

// Relay writes one line per event. Each line goes to the writer in a single
// unbuffered Write, so a failed write never affects later events.
type Relay struct {
	w io.Writer
}

func New(w io.Writer) *Relay {
	return &Relay{w: w}
}

// Relay emits ev. Heartbeats are never relayed and are silently skipped.
func (r *Relay) Relay(ev model.CertificateEvent) error {
	if ev.MessageType == model.MessageHeartbeat {
		return nil
	}
	if ev.Domains == nil {
		ev.Domains = []string{}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.CertIndex, err)
	}

	line := make([]byte, 0, len(Prefix)+len(payload)+1)
	line = append(line, Prefix...)
	line = append(line, payload...)
	line = append(line, '\n')

	if _, err := r.w.Write(line); err != nil {
		return fmt.Errorf("write event %d: %w", ev.CertIndex, err)
	}
	return nil
}

// Parse splits a relay line back into its event. It is the inverse of Relay
// for downstream readers and tests.
func Parse(line string) (model.CertificateEvent, error) {
	var ev model.CertificateEvent
	if len(line) < len(Prefix) || line[:len(Prefix)] != Prefix {
		return ev, fmt.Errorf("line does not start with %s", Prefix)
	}
	if err := json.Unmarshal([]byte(line[len(Prefix):]), &ev); err != nil {
		return ev, fmt.Errorf("decode relay payload: %w", err)
	}
	return ev, nil
}
