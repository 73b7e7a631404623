package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	deverrors "github.com/instant-compose/devloop/internal/errors"
)

// Listen binds the first free port of basePort..basePort+attempts-1 on host.
// report is called with every port found in use before moving on. Any other
// bind failure ends the search at once. When the whole range is taken the
// error matches deverrors.ErrNoAvailablePort. The returned port is the one
// actually bound, which differs from the requested one only for port 0.
func Listen(ctx context.Context, host string, basePort, attempts int, report func(port int)) (net.Listener, int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lc net.ListenConfig
	var lastErr error
	for port := basePort; port < basePort+attempts; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))

		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
				return ln, tcp.Port, nil
			}
			return ln, port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, deverrors.NewNetworkError(deverrors.CodeBind, "binding "+addr, err)
		}

		lastErr = err
		if report != nil {
			report(port)
		}
	}

	return nil, 0, deverrors.NewNetworkError(deverrors.CodeNoPort,
		fmt.Sprintf("no available port in %d-%d", basePort, basePort+attempts-1), lastErr)
}
