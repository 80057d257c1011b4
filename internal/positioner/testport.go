package positioner

import (
	"bytes"
	"errors"
	"sync"
)

// TestPort implements Porter with configurable behaviour for testing.
// It captures written commands and serves canned responses.
type TestPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// Script, when set, is consulted on every Write: the reply mapped to
	// the written command (without trailing CR) is queued for reading.
	Script map[string]string

	// DefaultReply is queued for written commands missing from Script.
	DefaultReply string

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// Closed indicates whether Close was called
	Closed bool

	// WriteCalls records the number of Write calls
	WriteCalls int
}

// NewTestPort creates a new TestPort.
func NewTestPort() *TestPort {
	return &TestPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer, optionally simulating errors.
func (t *TestPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	return t.ReadBuffer.Read(p)
}

// Write records the write and queues the scripted reply, if any.
func (t *TestPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, err = t.WriteBuffer.Write(p)
	if err != nil {
		return n, err
	}

	cmd := string(bytes.TrimSuffix(p, []byte("\r")))
	if reply, ok := t.Script[cmd]; ok {
		t.ReadBuffer.WriteString(reply)
	} else if t.DefaultReply != "" {
		t.ReadBuffer.WriteString(t.DefaultReply)
	}
	return n, nil
}

// Close marks the port as closed.
func (t *TestPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}

// QueueReply appends raw bytes to be returned by subsequent Read calls.
func (t *TestPort) QueueReply(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.WriteString(s)
}

// Commands returns the commands written so far, split on CR.
func (t *TestPort) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, c := range bytes.Split(t.WriteBuffer.Bytes(), []byte("\r")) {
		if len(c) > 0 {
			out = append(out, string(c))
		}
	}
	return out
}
