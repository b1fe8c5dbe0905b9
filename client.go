// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
)

const (
	// MaxOids is the maximum number of OIDs permitted in a single call,
	// otherwise error. MaxOids can be overridden in the Client struct.
	MaxOids = 60

	// java SNMP uses 50, snmp-net uses 10
	defaultMaxRepetitions = 50

	// "udp" and "udp4" are the same, see net.Dial
	udp = "udp"
)

// Client holds the configuration of an SNMP manager talking to one agent.
// Fill in the exported fields, call Connect, then issue requests; a Client
// is safe for concurrent requests once connected.
type Client struct {
	// Target is an ipv4 or ipv6 address or a host name.
	Target string

	// Port is a port. Zero selects 161, or 10161 for dtls.
	Port uint16

	// Transport is the transport protocol to use ("udp", "udp4", "udp6" or
	// "dtls"); if unset "udp" will be used.
	Transport string

	// Community is an SNMP Community string.
	Community string

	// Version is an SNMP Version.
	Version SnmpVersion

	// Context allows for overall deadlines and cancellation.
	Context context.Context

	// Timeout is the timeout for one request. There are no retries; callers
	// that want them loop themselves.
	Timeout time.Duration

	// MaxOids is the maximum number of oids allowed in a Get().
	// (default: MaxOids)
	MaxOids int

	// MaxRepetitions sets the GETBULK max-repetitions used by BulkWalk*
	// (default: 50)
	MaxRepetitions uint32

	// NonRepeaters sets the GETBULK max-repeaters used by BulkWalk*.
	// (default: 0 as per RFC 1905)
	NonRepeaters int

	// ContextEngineID is SNMPV3 ContextEngineID in ScopedPDU. When empty
	// the discovered authoritative engine ID is used.
	ContextEngineID string

	// ContextName is SNMPV3 ContextName in ScopedPDU.
	ContextName string

	// MsgFlags is an SNMPV3 MsgFlags.
	MsgFlags SnmpV3MsgFlags

	// SecurityParameters is an SNMPV3 Security Model parameters struct.
	// Its engine fields may be left empty; Connect fills them in by
	// discovery.
	SecurityParameters *UsmSecurityParameters

	// Logger is the Logger to use for debugging.
	// For verbose logging to stdout:
	// client.Logger = snmpcore.NewLogger(log.New(os.Stdout, "", 0))
	// For Release builds, you can turn off logging entirely by using the go
	// build tag "snmpcore_nodebug" even if the logger was installed.
	Logger Logger

	// IDs supplies request ids and message ids.
	// (default: NewRandomIDGenerator())
	IDs IDGenerator

	// DTLSConfig configures the session when Transport is "dtls".
	DTLSConfig *dtls.Config

	// Engines remembers discovered engines across Connects and clients.
	// (default: a cache private to this Client)
	Engines *EngineCache

	transport *Transport
	endpoint  net.Addr
	security  Security

	mu       sync.Mutex
	engine   EngineParams
	engineAt time.Time
}

// Default connection settings
var Default = &Client{
	Port:           161,
	Transport:      udp,
	Community:      "public",
	Version:        Version2c,
	Timeout:        time.Duration(2) * time.Second,
	MaxOids:        MaxOids,
	MaxRepetitions: defaultMaxRepetitions,
}

// Connect creates and opens a socket. Because UDP is a connectionless
// protocol, you won't know if the remote host is responding until you send
// packets. For v3, Connect also discovers the agent's engine unless
// SecurityParameters already names one.
func (x *Client) Connect() error {
	if err := x.validateParameters(); err != nil {
		return err
	}
	addr := net.JoinHostPort(x.Target, strconv.Itoa(int(x.Port)))

	var err error
	switch x.Transport {
	case "dtls":
		ctx, cancel := context.WithTimeout(x.Context, x.Timeout)
		defer cancel()
		if x.transport, err = DialDTLS(ctx, addr, x.DTLSConfig, x.Logger); err != nil {
			return fmt.Errorf("error establishing connection to host: %w", err)
		}
		x.endpoint = nil
	default:
		udpAddr, err := net.ResolveUDPAddr(x.Transport, addr)
		if err != nil {
			return fmt.Errorf("error resolving %s: %w", addr, err)
		}
		conn, err := net.ListenUDP(x.Transport, nil)
		if err != nil {
			return fmt.Errorf("error establishing connection to host: %w", err)
		}
		x.transport = NewTransport(conn, x.Logger)
		x.endpoint = udpAddr
	}
	x.Logger.Printf("Connect: %s via %s from %v", addr, x.Transport, x.transport.LocalAddr())

	if x.Version == Version3 && x.SecurityParameters.AuthoritativeEngineID == "" {
		if err = x.stampEngine(&UsmSecurityParameters{}, nil); err != nil {
			_ = x.Close()
			return err
		}
	}
	return nil
}

// Close releases the socket. Outstanding requests fail with
// ErrTransportClosed.
func (x *Client) Close() error {
	if x.transport == nil {
		return nil
	}
	return x.transport.Close()
}

func (x *Client) validateParameters() error {
	if x.Target == "" {
		return fmt.Errorf("client Target is empty")
	}
	if x.Transport == "" {
		x.Transport = udp
	}
	switch x.Transport {
	case udp, "udp4", "udp6":
		if x.Port == 0 {
			x.Port = 161
		}
	case "dtls":
		if x.Port == 0 {
			x.Port = DefaultDTLSPort
		}
	default:
		return fmt.Errorf("unsupported transport %q", x.Transport)
	}
	if x.Timeout <= 0 {
		return fmt.Errorf("client Timeout must be positive, got %s", x.Timeout)
	}
	if x.Context == nil {
		x.Context = context.Background()
	}
	if x.MaxOids == 0 {
		x.MaxOids = MaxOids
	} else if x.MaxOids < 0 {
		return fmt.Errorf("field MaxOids cannot be less than 0")
	}
	if x.IDs == nil {
		x.IDs = NewRandomIDGenerator()
	}
	if x.Engines == nil {
		x.Engines = NewEngineCache(x.Logger)
	}

	switch x.Version {
	case Version1, Version2c:
		x.security = PlainSecurity()
		return nil
	case Version3:
	default:
		return fmt.Errorf("unsupported SNMP version %s", x.Version)
	}

	if x.SecurityParameters == nil {
		return fmt.Errorf("SNMPv3 requires SecurityParameters")
	}
	if err := x.SecurityParameters.validate(x.MsgFlags); err != nil {
		return err
	}
	sp := x.SecurityParameters
	sec := PlainSecurity()
	var err error
	if x.MsgFlags.securityLevel() >= AuthNoPriv {
		if sec.Auth, err = NewAuthenticationProvider(sp.AuthenticationProtocol, sp.AuthenticationPassphrase); err != nil {
			return err
		}
	}
	if x.MsgFlags.securityLevel() == AuthPriv {
		if sec.Priv, err = NewPrivacyProvider(sp.PrivacyProtocol, sp.PrivacyPassphrase, sp.AuthenticationProtocol); err != nil {
			return err
		}
	}
	x.security = sec
	if sp.AuthoritativeEngineID != "" {
		x.setEngine(sp.Engine())
	}
	return nil
}

// Discover runs engine discovery against the target, replacing any engine
// parameters already known for it.
func (x *Client) Discover() (EngineParams, error) {
	if x.transport == nil {
		return EngineParams{}, fmt.Errorf("client is not connected")
	}
	d := NewDiscovery(x.IDs, x.Logger)
	engine, err := d.Run(x.Context, x.transport, x.endpoint, x.Timeout)
	if err != nil {
		x.Engines.Delete(x.engineKey())
		return EngineParams{}, err
	}
	x.Engines.Add(x.engineKey(), engine)
	x.setEngine(engine)
	return engine, nil
}

func (x *Client) engineKey() string {
	return net.JoinHostPort(x.Target, strconv.Itoa(int(x.Port)))
}

func (x *Client) setEngine(e EngineParams) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.engine, x.engineAt = e, time.Now()
}

// stampEngine writes the engine parameters for the next message into sp
// and, when it names none, into scope. A known engine time is advanced by
// the time elapsed locally since it was learnt. Discovery runs when nothing
// is known yet.
func (x *Client) stampEngine(sp *UsmSecurityParameters, scope *Scope) error {
	x.mu.Lock()
	e, at := x.engine, x.engineAt
	x.mu.Unlock()
	switch {
	case e.EngineID != "":
		e.Time += uint32(time.Since(at) / time.Second) //nolint:gosec
	case x.Engines.ApplyTo(x.engineKey(), sp, scope):
		x.setEngine(sp.Engine())
		return nil
	default:
		var err error
		if e, err = x.Discover(); err != nil {
			return err
		}
	}
	sp.SetEngine(e)
	if scope != nil && scope.ContextEngineID == "" {
		scope.ContextEngineID = e.EngineID
	}
	return nil
}

// newMessage wraps pdu for the configured version.
func (x *Client) newMessage(pdu *PDU) (*Message, error) {
	if x.transport == nil {
		return nil, fmt.Errorf("client is not connected")
	}
	if pdu.Type != Trap {
		pdu.RequestID = x.IDs.NextRequestID()
	}
	if x.Version != Version3 {
		return NewMessage(x.Version, x.Community, pdu), nil
	}

	sp := x.SecurityParameters.Copy()
	sp.AuthenticationParameters = ""
	sp.PrivacyParameters = nil
	scope := Scope{ContextEngineID: x.ContextEngineID, ContextName: x.ContextName, PDU: pdu}
	if err := x.stampEngine(sp, &scope); err != nil {
		return nil, err
	}

	flags := x.MsgFlags
	if pdu.Type.isConfirmed() {
		flags |= Reportable
	} else {
		// RFC 3412 section 6.4: unconfirmed class PDUs are never reportable
		flags &^= Reportable
	}
	return NewV3Message(
		Header{MsgID: x.IDs.NextMessageID(), Flags: flags},
		sp,
		scope,
		x.security,
	), nil
}

// send performs one confirmed exchange. Report replies are returned as a
// *ReportError; engine parameters carried by a Report are remembered so a
// caller retry can succeed.
func (x *Client) send(pdu *PDU) (*Message, error) {
	msg, err := x.newMessage(pdu)
	if err != nil {
		return nil, err
	}
	reply, err := x.transport.Send(x.Context, msg, x.endpoint, x.Timeout)
	x.learnEngine(reply, err)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// learnEngine refreshes the engine clock from a v3 reply. Only
// authenticated replies and Reports (notInTimeWindow carries the agent's
// clock) are trusted.
func (x *Client) learnEngine(reply *Message, err error) {
	if reply == nil || reply.Version != Version3 || reply.SecurityParameters == nil {
		return
	}
	var reportErr *ReportError
	if err != nil && !errors.As(err, &reportErr) {
		return
	}
	e := reply.SecurityParameters.Engine()
	if e.EngineID == "" {
		return
	}
	x.Engines.Add(x.engineKey(), e)
	x.setEngine(e)
}

func (x *Client) checkOids(n int) error {
	if n > x.MaxOids {
		return fmt.Errorf("oid count (%d) is greater than MaxOids (%d)", n, x.MaxOids)
	}
	return nil
}

func nullVariables(oids []OID) []Variable {
	vars := make([]Variable, 0, len(oids))
	for _, oid := range oids {
		vars = append(vars, NullVariable(oid))
	}
	return vars
}

// Get sends an SNMP GET request
func (x *Client) Get(oids []OID) (*PDU, error) {
	if err := x.checkOids(len(oids)); err != nil {
		return nil, err
	}
	return x.request(&PDU{Type: GetRequest, Variables: nullVariables(oids)})
}

// Set sends an SNMP SET request
func (x *Client) Set(vars []Variable) (*PDU, error) {
	if err := x.checkOids(len(vars)); err != nil {
		return nil, err
	}
	return x.request(&PDU{Type: SetRequest, Variables: vars})
}

// GetNext sends an SNMP GETNEXT request
func (x *Client) GetNext(oids []OID) (*PDU, error) {
	if err := x.checkOids(len(oids)); err != nil {
		return nil, err
	}
	return x.request(&PDU{Type: GetNextRequest, Variables: nullVariables(oids)})
}

// GetBulk sends an SNMP GETBULK request
//
// For maxRepetitions greater than 255, use BulkWalk() or BulkWalkAll()
func (x *Client) GetBulk(oids []OID, nonRepeaters int, maxRepetitions uint32) (*PDU, error) {
	if x.Version == Version1 {
		return nil, fmt.Errorf("GETBULK not supported in SNMPv1")
	}
	if err := x.checkOids(len(oids)); err != nil {
		return nil, err
	}
	return x.request(&PDU{
		Type:           GetBulkRequest,
		NonRepeaters:   nonRepeaters,
		MaxRepetitions: int(maxRepetitions & 0x7FFFFFFF),
		Variables:      nullVariables(oids),
	})
}

func (x *Client) request(pdu *PDU) (*PDU, error) {
	reply, err := x.send(pdu)
	if err != nil {
		return nil, err
	}
	return reply.PDU(), nil
}

// GetAsync sends an SNMP GET request and returns at once; callback runs
// exactly once with the response PDU or the error the exchange ended with.
func (x *Client) GetAsync(oids []OID, callback func(*PDU, error)) error {
	if callback == nil {
		return fmt.Errorf("callback is required")
	}
	if err := x.checkOids(len(oids)); err != nil {
		return err
	}
	msg, err := x.newMessage(&PDU{Type: GetRequest, Variables: nullVariables(oids)})
	if err != nil {
		return err
	}
	return x.transport.SendAsync(msg, x.endpoint, x.Timeout, func(reply *Message, err error) {
		x.learnEngine(reply, err)
		if err != nil {
			callback(nil, err)
			return
		}
		callback(reply.PDU(), nil)
	})
}

// Partition - returns true when dividing a slice into
// partitionSize lengths, including last partition which may be smaller
// than partitionSize. This is useful when you have a large array of OIDs
// to run Get() on. See the tests for example usage.
//
// For example for a slice of 8 items to be broken into partitions of
// length 3, Partition returns true for the currentPosition having
// the following values:
//
// 0  1  2  3  4  5  6  7
//
//	T        T     T
func Partition(currentPosition, partitionSize, sliceLength int) bool {
	if currentPosition < 0 || currentPosition >= sliceLength {
		return false
	}
	if partitionSize == 1 { // redundant, but an obvious optimisation
		return true
	}
	if currentPosition%partitionSize == partitionSize-1 {
		return true
	}
	if currentPosition == sliceLength-1 {
		return true
	}
	return false
}
