// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/dtls/v3"
)

// DefaultDTLSPort is the snmpdtls port, RFC 6353.
const DefaultDTLSPort = 10161

// DialDTLS opens a DTLS session to addr and returns a transport over it.
// The handshake completes before DialDTLS returns, bounded by ctx.
func DialDTLS(ctx context.Context, addr string, config *dtls.Config, logger Logger) (*Transport, error) {
	if config == nil {
		return nil, fmt.Errorf("DTLS transport requires a config")
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := dtls.Dial("udp", udpAddr, config)
	if err != nil {
		return nil, fmt.Errorf("dtls dial %s: %w", addr, err)
	}
	if err = conn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dtls handshake with %s: %w", addr, err)
	}
	if state, ok := conn.ConnectionState(); ok {
		logger.Printf("DTLS session to %s established, %d peer certificates", addr, len(state.PeerCertificates))
	}
	return NewConnTransport(conn, logger), nil
}
