package analyzer

import (
	"bufio"
	"context"
	"math"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeInstrument answers SCPI queries over the far end of a net.Pipe.
func fakeInstrument(t *testing.T, conn net.Conn, replies map[string]string) {
	t.Helper()
	go func() {
		rd := bufio.NewReader(conn)
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimRight(line, "\n")
			if reply, ok := replies[cmd]; ok {
				conn.Write([]byte(reply + "\n"))
			}
		}
	}()
}

func TestSCPISweep(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fakeInstrument(t, server, map[string]string{
		"INIT:IMM;*OPC?":  "1",
		"SENS:FREQ:DATA?": "1e9,2e9,3e9",
		"CALC:DATA:SDAT?": "1,0,0.5,0.5,0,-0.25",
	})

	c := NewSCPIClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sweep, err := c.Sweep(ctx, "S21")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(sweep.Freqs) != 3 || len(sweep.Response) != 3 {
		t.Fatalf("sweep shape = %d freqs, %d points; want 3, 3", len(sweep.Freqs), len(sweep.Response))
	}
	if sweep.Freqs[1] != 2e9 {
		t.Errorf("Freqs[1] = %g, want 2e9", sweep.Freqs[1])
	}
	if sweep.Response[0] != complex(1, 0) {
		t.Errorf("Response[0] = %v, want (1+0i)", sweep.Response[0])
	}
	if sweep.Response[1] != complex(0.5, 0.5) {
		t.Errorf("Response[1] = %v, want (0.5+0.5i)", sweep.Response[1])
	}
	if sweep.Response[2] != complex(0, -0.25) {
		t.Errorf("Response[2] = %v, want (0-0.25i)", sweep.Response[2])
	}
}

func TestSCPISweepShapeMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fakeInstrument(t, server, map[string]string{
		"INIT:IMM;*OPC?":  "1",
		"SENS:FREQ:DATA?": "1e9,2e9,3e9",
		"CALC:DATA:SDAT?": "1,0,0.5,0.5", // two points for a three-point grid
	})

	c := NewSCPIClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.Sweep(ctx, "S21"); err == nil {
		t.Fatal("Sweep with truncated data succeeded, want error")
	}
}

func TestSCPISetFrequencyRangeValidation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	fakeInstrument(t, server, nil)

	c := NewSCPIClient(client)
	ctx := context.Background()

	if err := c.SetFrequencyRange(ctx, 2e9, 1e9, 101); err == nil {
		t.Error("inverted range accepted, want error")
	}
	if err := c.SetFrequencyRange(ctx, 1e9, 2e9, 1); err == nil {
		t.Error("single-point sweep accepted, want error")
	}
	if err := c.SetFrequencyRange(ctx, 1e9, 2e9, 101); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
}

func TestParseCSVFloats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr bool
	}{
		{"plain", "1,2,3", []float64{1, 2, 3}, false},
		{"spaces", " 1.5 , -2 ", []float64{1.5, -2}, false},
		{"scientific", "1e9,2.5e9", []float64{1e9, 2.5e9}, false},
		{"empty", "", nil, false},
		{"trailing comma", "1,2,", nil, true},
		{"garbage", "1,abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCSVFloats(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCSVFloats(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCSVFloats(%q): %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCSVFloats(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCSVFloats(%q)[%d] = %g, want %g", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMockSweepDeterministic(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	m.SetPose(0, 0)
	a, err := m.Sweep(ctx, "S21")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	b, err := m.Sweep(ctx, "S21")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	for i := range a.Response {
		if a.Response[i] != b.Response[i] {
			t.Fatalf("mock sweeps differ at %d: %v vs %v", i, a.Response[i], b.Response[i])
		}
	}

	// boresight response is stronger than an off-axis one
	m.SetPose(60, 0)
	c, err := m.Sweep(ctx, "S21")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if math.Hypot(real(c.Response[0]), imag(c.Response[0])) >=
		math.Hypot(real(a.Response[0]), imag(a.Response[0])) {
		t.Error("off-axis mock response not weaker than boresight")
	}
}

func TestMockGrid(t *testing.T) {
	m := NewMock()
	if err := m.SetFrequencyRange(context.Background(), 1e9, 2e9, 11); err != nil {
		t.Fatalf("SetFrequencyRange: %v", err)
	}
	s, err := m.Sweep(context.Background(), "S21")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(s.Freqs) != 11 {
		t.Fatalf("grid has %d points, want 11", len(s.Freqs))
	}
	if s.Freqs[0] != 1e9 || s.Freqs[10] != 2e9 {
		t.Errorf("grid endpoints = %g, %g; want 1e9, 2e9", s.Freqs[0], s.Freqs[10])
	}
}
