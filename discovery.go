// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// SNMPv3: User-based Security Model Report PDUs and
// error types as per https://tools.ietf.org/html/rfc3414
var (
	usmStats                     = MustParseOID(".1.3.6.1.6.3.15.1.1")
	usmStatsUnsupportedSecLevels = MustParseOID(".1.3.6.1.6.3.15.1.1.1.0")
	usmStatsNotInTimeWindows     = MustParseOID(".1.3.6.1.6.3.15.1.1.2.0")
	usmStatsUnknownUserNames     = MustParseOID(".1.3.6.1.6.3.15.1.1.3.0")
	usmStatsUnknownEngineIDs     = MustParseOID(".1.3.6.1.6.3.15.1.1.4.0")
	usmStatsWrongDigests         = MustParseOID(".1.3.6.1.6.3.15.1.1.5.0")
	usmStatsDecryptionErrors     = MustParseOID(".1.3.6.1.6.3.15.1.1.6.0")
	snmpUnknownSecurityModels    = MustParseOID(".1.3.6.1.6.3.11.2.1.1.0")
	snmpInvalidMsgs              = MustParseOID(".1.3.6.1.6.3.11.2.1.2.0")
	snmpUnknownPDUHandlers       = MustParseOID(".1.3.6.1.6.3.11.2.1.3.0")
)

var reportReasons = []struct {
	oid    OID
	reason error
}{
	{usmStatsUnsupportedSecLevels, ErrUnknownSecurityLevel},
	{usmStatsNotInTimeWindows, ErrNotInTimeWindow},
	{usmStatsUnknownUserNames, ErrUnknownUsername},
	{usmStatsUnknownEngineIDs, ErrUnknownEngineID},
	{usmStatsWrongDigests, ErrWrongDigest},
	{usmStatsDecryptionErrors, ErrDecryption},
	{snmpUnknownSecurityModels, ErrUnknownSecurityModels},
	{snmpInvalidMsgs, ErrInvalidMsgs},
	{snmpUnknownPDUHandlers, ErrUnknownPDUHandlers},
}

// newReportError classifies a Report by its first variable.
func newReportError(reply *Message) *ReportError {
	re := &ReportError{reason: ErrUnknownReportPDU}
	if reply.SecurityParameters != nil {
		re.Engine = reply.SecurityParameters.Engine()
	}
	vars := reply.PDU().Variables
	if len(vars) == 0 {
		return re
	}
	re.OID = vars[0].Name
	if c, ok := vars[0].Value.(uint32); ok {
		re.Counter = c
	}
	for _, r := range reportReasons {
		// some agents omit the instance suffix
		if vars[0].Name.Equal(r.oid) || vars[0].Name.Equal(r.oid[:len(r.oid)-1]) {
			re.reason = r.reason
			break
		}
	}
	return re
}

// DiscoveryState is the progress of an engine discovery.
type DiscoveryState int

const (
	DiscoveryNotStarted DiscoveryState = iota
	DiscoveryAwaitingReport
	DiscoveryDiscovered
	DiscoveryFailed
)

func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryNotStarted:
		return "NotStarted"
	case DiscoveryAwaitingReport:
		return "AwaitingReport"
	case DiscoveryDiscovered:
		return "Discovered"
	case DiscoveryFailed:
		return "Failed"
	default:
		return fmt.Sprintf("DiscoveryState(%d)", int(s))
	}
}

// Discovery learns the authoritative engine ID, boots and time of a v3
// agent (RFC 3414 section 4) by sending an empty, unauthenticated,
// reportable GetRequest and reading the Report that comes back. A Discovery
// runs once: Discovered and Failed are final.
type Discovery struct {
	ids    IDGenerator
	logger Logger

	mu      sync.Mutex
	state   DiscoveryState
	engine  EngineParams
	err     error
	request *Message
}

// NewDiscovery returns a discovery drawing its ids from ids.
func NewDiscovery(ids IDGenerator, logger Logger) *Discovery {
	if ids == nil {
		ids = NewRandomIDGenerator()
	}
	return &Discovery{ids: ids, logger: logger}
}

// State returns the current state.
func (d *Discovery) State() DiscoveryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Engine returns the discovered parameters. Until the state is Discovered
// it fails with ErrNotDiscovered.
func (d *Discovery) Engine() (EngineParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DiscoveryDiscovered {
		return EngineParams{}, fmt.Errorf("%w (state %s)", ErrNotDiscovered, d.state)
	}
	return d.engine, nil
}

// Apply stamps the discovered engine into the security parameters and, when
// it names none, the scope of a message about to be sent. It fails with
// ErrNotDiscovered until the state is Discovered, so an authenticated
// exchange cannot start against an unknown engine.
func (d *Discovery) Apply(sp *UsmSecurityParameters, scope *Scope) error {
	engine, err := d.Engine()
	if err != nil {
		return err
	}
	sp.SetEngine(engine)
	if scope != nil && scope.ContextEngineID == "" {
		scope.ContextEngineID = engine.EngineID
	}
	return nil
}

// Request builds the discovery message and moves to AwaitingReport.
func (d *Discovery) Request() (*Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DiscoveryNotStarted {
		return nil, protocolErrorf("discovery already %s", d.state)
	}
	d.request = NewV3Message(
		Header{MsgID: d.ids.NextMessageID(), Flags: Reportable},
		&UsmSecurityParameters{},
		Scope{PDU: &PDU{Type: GetRequest, RequestID: d.ids.NextRequestID()}},
		PlainSecurity(),
	)
	d.state = DiscoveryAwaitingReport
	return d.request, nil
}

// HandleReply completes the discovery with the outcome of sending the
// request: either the reply, or the error the exchange ended with.
func (d *Discovery) HandleReply(reply *Message, exchangeErr error) (EngineParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DiscoveryAwaitingReport {
		return EngineParams{}, protocolErrorf("discovery reply in state %s", d.state)
	}
	engine, err := d.validate(reply, exchangeErr)
	if err != nil {
		d.state, d.err = DiscoveryFailed, err
		d.logger.Printf("DISCOVERY failed: %v", err)
		return EngineParams{}, err
	}
	d.state, d.engine = DiscoveryDiscovered, engine
	d.logger.Printf("DISCOVERY done: %s", engine)
	return engine, nil
}

func (d *Discovery) validate(reply *Message, exchangeErr error) (EngineParams, error) {
	var reportErr *ReportError
	if exchangeErr != nil && !errors.As(exchangeErr, &reportErr) {
		return EngineParams{}, fmt.Errorf("%w: %w", ErrDiscovery, exchangeErr)
	}
	if reply == nil || reply.PDU() == nil {
		return EngineParams{}, fmt.Errorf("%w: no reply", ErrDiscovery)
	}
	if t := reply.PDU().Type; t != Report {
		return EngineParams{}, fmt.Errorf("%w: expected Report, got %s", ErrDiscovery, t)
	}
	if reply.SecurityParameters == nil || reply.SecurityParameters.AuthoritativeEngineID == "" {
		return EngineParams{}, fmt.Errorf("%w: Report carries no engine id", ErrDiscovery)
	}
	vars := reply.PDU().Variables
	if len(vars) == 0 {
		return EngineParams{}, fmt.Errorf("%w: Report carries no variables", ErrDiscovery)
	}
	if !vars[0].Name.HasPrefix(usmStats) || vars[0].Type != Counter32 {
		return EngineParams{}, fmt.Errorf("%w: unexpected Report variable %s", ErrDiscovery, vars[0])
	}
	d.logger.Printf("DISCOVERY report %s", vars[0])
	return reply.SecurityParameters.Engine(), nil
}

// Run performs the whole discovery against endpoint over t.
func (d *Discovery) Run(ctx context.Context, t *Transport, endpoint net.Addr, timeout time.Duration) (EngineParams, error) {
	req, err := d.Request()
	if err != nil {
		return EngineParams{}, err
	}
	reply, err := t.Send(ctx, req, endpoint, timeout)
	return d.HandleReply(reply, err)
}
