// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"fmt"
	"time"
)

// sysUpTime.0, the first variable of every SNMPv2 notification
var sysUpTimeOid = OID{1, 3, 6, 1, 2, 1, 1, 3, 0}

// SnmpTrap is used to define a SNMP trap, and is passed into SendTrap
type SnmpTrap struct {
	Variables []Variable

	// If true, the trap is an InformRequest, not a trap. This has no effect on
	// v1 traps, as Inform is not part of the v1 protocol.
	IsInform bool

	// These fields are required for SNMPV1 Trap Headers
	Enterprise   OID
	AgentAddress string
	GenericTrap  int
	SpecificTrap int
	Timestamp    uint32
}

//
// Sending Traps ie acting as a notification originator
//

// SendTrap sends a SNMP Trap
//
// Variables[0] can be of Type TimeTicks (with the desired uint32 epoch
// time).  Otherwise a TimeTicks sysUpTime.0 is prepended, with time set to
// now. This mirrors the behaviour of the Net-SNMP command-line tools.
//
// SendTrap doesn't wait for a return packet from the NMS (Network
// Management Station), except for an Inform, whose Response it returns.
func (x *Client) SendTrap(trap SnmpTrap) (*PDU, error) {
	pdu := &PDU{}

	switch x.Version {
	case Version2c, Version3:
		// Default to a v2 trap.
		pdu.Type = SNMPv2Trap
		if trap.IsInform {
			pdu.Type = InformRequest
		}

		if len(trap.Variables) == 0 {
			return nil, fmt.Errorf("function SendTrap requires at least 1 variable")
		}

		if trap.Variables[0].Type == TimeTicks {
			// check is uint32
			if _, ok := trap.Variables[0].Value.(uint32); !ok {
				return nil, fmt.Errorf("function SendTrap TimeTick must be uint32")
			}
		} else {
			now := uint32(time.Now().Unix()) //nolint:gosec
			uptime := Variable{Name: sysUpTimeOid, Type: TimeTicks, Value: now}
			trap.Variables = append([]Variable{uptime}, trap.Variables...)
		}
		pdu.Variables = trap.Variables

	case Version1:
		pdu.Type = Trap
		if len(trap.Enterprise) == 0 {
			return nil, fmt.Errorf("function SendTrap for SNMPV1 requires an Enterprise OID")
		}
		if len(trap.AgentAddress) == 0 {
			return nil, fmt.Errorf("function SendTrap for SNMPV1 requires an Agent Address")
		}
		pdu.Trap = &V1Trap{
			Enterprise:   trap.Enterprise,
			AgentAddress: trap.AgentAddress,
			GenericTrap:  trap.GenericTrap,
			SpecificTrap: trap.SpecificTrap,
			Timestamp:    trap.Timestamp,
		}
		pdu.Variables = trap.Variables

	default:
		return nil, fmt.Errorf("function SendTrap doesn't support %s", x.Version)
	}

	// all sends wait for the return packet, except for SNMPv2Trap
	// -> wait is only for informs
	if pdu.Type == InformRequest {
		return x.request(pdu)
	}
	msg, err := x.newMessage(pdu)
	if err != nil {
		return nil, err
	}
	return nil, x.transport.Post(msg, x.endpoint)
}
