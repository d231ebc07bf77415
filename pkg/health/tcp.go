package health

import (
	"context"
	"net"
	"strconv"
	"time"

	"ChatDash/pkg/logger"
)

// DefaultTimeout bounds a single connect attempt.
const DefaultTimeout = 5 * time.Second

// TCPProber opens a connection to Address and closes it immediately.
// No bytes are exchanged, so a true result only means something is listening.
type TCPProber struct {
	Address string
	Timeout time.Duration
	Log     logger.Logger

	dialer net.Dialer
}

// NewTCPProber creates a prober for host:port.
func NewTCPProber(host string, port int, timeout time.Duration, log logger.Logger) *TCPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Noop()
	}
	return &TCPProber{
		Address: net.JoinHostPort(host, strconv.Itoa(port)),
		Timeout: timeout,
		Log:     log,
	}
}

// Probe implements Prober. Refused, timed out, DNS failure and unreachable
// are all reported as false. No retries.
func (p *TCPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		p.Log.Debug("%s unreachable: %v", p.Address, err)
		return false
	}
	_ = conn.Close()
	return true
}
