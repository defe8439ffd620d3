package relay

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andres10976/certwatch/internal/model"
)

func sampleEvent() model.CertificateEvent {
	return model.CertificateEvent{
		MessageType:      model.MessageCertificateUpdate,
		CertIndex:        42,
		Domains:          []string{"sub.xyz.example", "www.sub.xyz.example"},
		SerialNumber:     "04AB",
		IssuerCommonName: "R3",
		SeenAt:           1700000000.25,
	}
}

func TestRelay_WritesPrefixedCompactLine(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	require.NoError(t, r.Relay(sampleEvent()))

	out := buf.String()
	assert.Equal(t,
		`__CERT_EVENT__{"message_type":"certificate_update","cert_index":42,"domains":["sub.xyz.example","www.sub.xyz.example"],"serial_number":"04AB","issuer":"R3","seen":1700000000.25}`+"\n",
		out)
}

func TestRelay_EachEventVisibleImmediately(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	require.NoError(t, r.Relay(sampleEvent()))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "first line visible before the next write")

	ev := sampleEvent()
	ev.CertIndex = 43
	require.NoError(t, r.Relay(ev))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRelay_SkipsHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	require.NoError(t, r.Relay(model.CertificateEvent{MessageType: model.MessageHeartbeat}))
	assert.Empty(t, buf.String())
}

func TestRelay_EmptyDomainsEncodedAsArray(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	ev := sampleEvent()
	ev.Domains = nil
	require.NoError(t, r.Relay(ev))
	assert.Contains(t, buf.String(), `"domains":[]`)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRelay_WriteErrorReturned(t *testing.T) {
	r := New(failingWriter{})
	err := r.Relay(sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

// flakyWriter fails the first write and passes later ones through.
type flakyWriter struct {
	bytes.Buffer
	calls int
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	f.calls++
	if f.calls == 1 {
		return 0, errors.New("resource temporarily unavailable")
	}
	return f.Buffer.Write(p)
}

func TestRelay_RecoversAfterTransientWriteError(t *testing.T) {
	w := &flakyWriter{}
	r := New(w)

	for i := int64(1); i <= 3; i++ {
		ev := sampleEvent()
		ev.CertIndex = i
		err := r.Relay(ev)
		if i == 1 {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
	}

	lines := strings.Split(strings.TrimSuffix(w.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		ev, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, int64(i+2), ev.CertIndex)
	}
}

func TestRelay_OneWritePerLine(t *testing.T) {
	w := &flakyWriter{calls: 1}
	r := New(w)

	require.NoError(t, r.Relay(sampleEvent()))
	require.NoError(t, r.Relay(sampleEvent()))
	assert.Equal(t, 3, w.calls, "each event is a single Write")
}

func TestParse_RoundTripsRelayLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Relay(sampleEvent()))

	ev, err := Parse(strings.TrimSuffix(buf.String(), "\n"))
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), ev)

	_, err = Parse(`{"cert_index":1}`)
	assert.Error(t, err)
}
