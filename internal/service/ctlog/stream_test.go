package ctlog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andres10976/certwatch/internal/model"
	"github.com/andres10976/certwatch/internal/service/feed"
)

// fakeLog serves get-sth and get-entries from a fixed slice of entries.
type fakeLog struct {
	entries    []RawEntry
	sthCalls   atomic.Int32
	entryCalls atomic.Int32
	sthStatus  atomic.Int32
}

func (f *fakeLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ct/v1/get-sth":
		f.sthCalls.Add(1)
		if status := f.sthStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			return
		}
		json.NewEncoder(w).Encode(STH{TreeSize: int64(len(f.entries))})
	case "/ct/v1/get-entries":
		f.entryCalls.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end, _ := strconv.Atoi(r.URL.Query().Get("end"))
		json.NewEncoder(w).Encode(map[string][]RawEntry{"entries": f.entries[start : end+1]})
	default:
		http.NotFound(w, r)
	}
}

func x509Entry(t *testing.T, cn string, sans []string, ts uint64) RawEntry {
	t.Helper()
	der := selfSignedCert(t, cn, sans, "")
	return RawEntry{LeafInput: buildLeaf(t, 0, der, ts)}
}

func TestSource_DialRejectsUnusableURL(t *testing.T) {
	for _, raw := range []string{"", "ws://ct.example.com", "::bad"} {
		_, err := NewSource(raw, 0, 0, nil).Dial(context.Background())
		if !errors.Is(err, feed.ErrTransportUnavailable) {
			t.Errorf("Dial(%q) err = %v, want ErrTransportUnavailable", raw, err)
		}
	}
}

func TestSource_DialReportsLogErrors(t *testing.T) {
	log := &fakeLog{}
	log.sthStatus.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(log)
	defer srv.Close()

	_, err := NewSource(srv.URL, 0, 0, nil).Dial(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, feed.ErrTransportUnavailable) {
		t.Errorf("err = %v, should not be ErrTransportUnavailable", err)
	}
}

func TestSource_StreamsFromOneBatchBehindHead(t *testing.T) {
	log := &fakeLog{entries: []RawEntry{
		x509Entry(t, "zero.example.com", nil, 1700000000000),
		x509Entry(t, "one.example.com", []string{"www.one.example.com"}, 1700000001000),
		x509Entry(t, "two.example.com", nil, 1700000002500),
	}}
	srv := httptest.NewServer(log)
	defer srv.Close()

	stream, err := NewSource(srv.URL, 2, 10*time.Millisecond, nil).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer stream.Close()

	ev, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.MessageType != model.MessageCertificateUpdate {
		t.Errorf("MessageType = %q", ev.MessageType)
	}
	if ev.CertIndex != 1 {
		t.Errorf("CertIndex = %d, want 1", ev.CertIndex)
	}
	if len(ev.Domains) != 2 || ev.Domains[0] != "one.example.com" || ev.Domains[1] != "www.one.example.com" {
		t.Errorf("Domains = %v", ev.Domains)
	}
	if ev.SeenAt != 1700000001 {
		t.Errorf("SeenAt = %v, want 1700000001", ev.SeenAt)
	}
	if ev.SerialNumber != "1" {
		t.Errorf("SerialNumber = %q, want 1", ev.SerialNumber)
	}

	ev, err = stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.CertIndex != 2 || ev.SeenAt != 1700000002.5 {
		t.Errorf("second event = %+v", ev)
	}
	if got := log.entryCalls.Load(); got != 1 {
		t.Errorf("get-entries calls = %d, want 1", got)
	}
}

func TestSource_WaitsWhenCaughtUp(t *testing.T) {
	log := &fakeLog{entries: []RawEntry{x509Entry(t, "only.example.com", nil, 1700000000000)}}
	srv := httptest.NewServer(log)
	defer srv.Close()

	stream, err := NewSource(srv.URL, 10, 5*time.Millisecond, nil).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	// One STH at dial, then at least two polls while idle.
	if got := log.sthCalls.Load(); got < 3 {
		t.Errorf("get-sth calls = %d, want at least 3", got)
	}
}

func TestSource_MalformedEntryDoesNotEndStream(t *testing.T) {
	log := &fakeLog{entries: []RawEntry{
		{LeafInput: []byte{0, 0, 1}},
		x509Entry(t, "good.example.com", nil, 1700000000000),
	}}
	srv := httptest.NewServer(log)
	defer srv.Close()

	stream, err := NewSource(srv.URL, 10, time.Second, nil).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	_, err = stream.Next(context.Background())
	if !errors.Is(err, feed.ErrMalformedEvent) {
		t.Fatalf("err = %v, want ErrMalformedEvent", err)
	}

	ev, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.CertIndex != 1 || ev.Domains[0] != "good.example.com" {
		t.Errorf("event = %+v", ev)
	}
}

func TestSource_LogFailureMidStream(t *testing.T) {
	log := &fakeLog{entries: []RawEntry{x509Entry(t, "a.example.com", nil, 1700000000000)}}
	srv := httptest.NewServer(log)
	defer srv.Close()

	stream, err := NewSource(srv.URL, 10, time.Second, nil).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	log.sthStatus.Store(http.StatusInternalServerError)
	_, err = stream.Next(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, feed.ErrMalformedEvent) {
		t.Errorf("err = %v, should be a transport error", err)
	}
}
