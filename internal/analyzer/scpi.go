package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultDialTimeout bounds the initial TCP connection to the instrument.
const DefaultDialTimeout = 5 * time.Second

// SCPIClient drives a VNA over a SCPI socket connection. Commands and
// queries are newline-terminated ASCII; bulk data transfers use the
// instrument's ASCII data format.
type SCPIClient struct {
	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

// Dial connects to a VNA SCPI socket (conventionally port 5025) and
// verifies the instrument responds to an identification query.
func Dial(addr string) (*SCPIClient, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial analyzer %s: %w", addr, err)
	}
	c := NewSCPIClient(conn)

	idn, err := c.Query(context.Background(), "*IDN?")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("analyzer identification: %w", err)
	}
	if idn == "" {
		conn.Close()
		return nil, fmt.Errorf("analyzer at %s returned empty identification", addr)
	}
	return c, nil
}

// NewSCPIClient wraps an established connection. Exposed for tests,
// which drive the client over a net.Pipe.
func NewSCPIClient(conn net.Conn) *SCPIClient {
	return &SCPIClient{
		conn: conn,
		rd:   bufio.NewReader(conn),
	}
}

func (c *SCPIClient) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

// Send writes a bare command with no expected reply.
func (c *SCPIClient) Send(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyDeadline(ctx)
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return nil
}

// Query writes a command and reads back one newline-terminated reply.
func (c *SCPIClient) Query(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyDeadline(ctx)
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("query %q: %w", cmd, err)
	}
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("query %q: %w", cmd, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SetFrequencyRange configures the stimulus grid for subsequent sweeps.
func (c *SCPIClient) SetFrequencyRange(ctx context.Context, startHz, stopHz float64, points int) error {
	if stopHz <= startHz {
		return fmt.Errorf("stop frequency %g must exceed start %g", stopHz, startHz)
	}
	if points < 2 {
		return fmt.Errorf("sweep needs at least 2 points, got %d", points)
	}
	for _, cmd := range []string{
		fmt.Sprintf("SENS:FREQ:STAR %g", startHz),
		fmt.Sprintf("SENS:FREQ:STOP %g", stopHz),
		fmt.Sprintf("SENS:SWE:POIN %d", points),
	} {
		if err := c.Send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Sweep triggers a single capture of the named measurement and transfers
// the stimulus grid and the complex response data.
func (c *SCPIClient) Sweep(ctx context.Context, measurement string) (*SweepData, error) {
	if err := c.Send(ctx, fmt.Sprintf("CALC:PAR:DEF %q", measurement)); err != nil {
		return nil, err
	}

	// single triggered sweep; *OPC? blocks until the capture completes
	done, err := c.Query(ctx, "INIT:IMM;*OPC?")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(done) != "1" {
		return nil, fmt.Errorf("sweep did not complete, *OPC? returned %q", done)
	}

	freqLine, err := c.Query(ctx, "SENS:FREQ:DATA?")
	if err != nil {
		return nil, err
	}
	freqs, err := parseCSVFloats(freqLine)
	if err != nil {
		return nil, fmt.Errorf("stimulus data: %w", err)
	}

	dataLine, err := c.Query(ctx, "CALC:DATA:SDAT?")
	if err != nil {
		return nil, err
	}
	pairs, err := parseCSVFloats(dataLine)
	if err != nil {
		return nil, fmt.Errorf("sweep data: %w", err)
	}
	if len(pairs) != 2*len(freqs) {
		return nil, fmt.Errorf("sweep returned %d values for %d stimulus points", len(pairs), len(freqs))
	}

	resp := make([]complex128, len(freqs))
	for i := range resp {
		resp[i] = complex(pairs[2*i], pairs[2*i+1])
	}
	return &SweepData{Freqs: freqs, Response: resp}, nil
}

// Close releases the instrument connection.
func (c *SCPIClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// parseCSVFloats parses the analyzer's comma-separated ASCII data block.
func parseCSVFloats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
