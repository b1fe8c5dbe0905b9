// Copyright 2012-2014 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"fmt"
)

// Base OID for MIB-2 defined SNMP variables
var baseOid = OID{1, 3, 6, 1, 2, 1}

// WalkFunc is the type of the function called for each data unit visited
// by the Walk function.  If an error is returned processing stops.
type WalkFunc func(v Variable) error

// BulkWalk retrieves a subtree of values using GETBULK. As the tree is
// walked walkFn is called for each new value. The function immediately
// returns an error if either there is an underlaying SNMP error (e.g.
// GetBulk fails), or if walkFn returns an error.
func (x *Client) BulkWalk(rootOid OID, walkFn WalkFunc) error {
	return x.walk(GetBulkRequest, rootOid, walkFn)
}

// BulkWalkAll is similar to BulkWalk but returns a filled array of all
// values rather than using a callback function to stream results.
func (x *Client) BulkWalkAll(rootOid OID) ([]Variable, error) {
	return x.walkAll(GetBulkRequest, rootOid)
}

// Walk retrieves a subtree of values using GETNEXT - a request is made for
// each value, unlike BulkWalk which does this operation in batches. As the
// tree is walked walkFn is called for each new value. The function
// immediately returns an error if either there is an underlaying SNMP error
// (e.g. GetNext fails), or if walkFn returns an error.
func (x *Client) Walk(rootOid OID, walkFn WalkFunc) error {
	return x.walk(GetNextRequest, rootOid, walkFn)
}

// WalkAll is similar to Walk but returns a filled array of all values
// rather than using a callback function to stream results.
func (x *Client) WalkAll(rootOid OID) ([]Variable, error) {
	return x.walkAll(GetNextRequest, rootOid)
}

func (x *Client) walk(getRequestType PDUType, rootOid OID, walkFn WalkFunc) error {
	if len(rootOid) == 0 {
		rootOid = baseOid
	}
	oid := rootOid
	requests := 0
	maxReps := x.MaxRepetitions
	if maxReps == 0 {
		maxReps = defaultMaxRepetitions
	}

	getFn := func(oid OID) (*PDU, error) {
		switch getRequestType {
		case GetBulkRequest:
			return x.GetBulk([]OID{oid}, x.NonRepeaters, maxReps)
		case GetNextRequest:
			return x.GetNext([]OID{oid})
		case GetRequest:
			return x.Get([]OID{oid})
		default:
			return nil, fmt.Errorf("unsupported request type: %s", getRequestType)
		}
	}

RequestLoop:
	for {
		requests++

		response, err := getFn(oid)
		if err != nil {
			return err
		}
		if len(response.Variables) == 0 {
			break RequestLoop
		}

		switch response.ErrorStatus {
		case NoError:
		case NoSuchName:
			// v1 agents signal the end of the MIB this way
			x.Logger.Print("Walk terminated with NoSuchName")
			break RequestLoop
		default:
			return fmt.Errorf("%w: %s at index %d", ErrProtocol, response.ErrorStatus, response.ErrorIndex)
		}

		for i, v := range response.Variables {
			if v.Type == EndOfMibView || v.Type == NoSuchObject || v.Type == NoSuchInstance {
				x.Logger.Printf("BulkWalk terminated with type %s", v.Type)
				break RequestLoop
			}
			if !v.Name.HasPrefix(rootOid) {
				// Not in the requested root range.
				// if this is the first request, and the first variable in that request
				// and this condition is triggered - the rootOid is likely a leaf, so
				// read it directly.
				if requests == 1 && i == 0 && getRequestType != GetRequest {
					getRequestType = GetRequest
					continue RequestLoop
				}
				break RequestLoop
			}
			if getRequestType != GetRequest && v.Name.Compare(oid) <= 0 {
				return fmt.Errorf("%w: OID not increasing: %s", ErrProtocol, v.Name)
			}
			// Report our pdu
			if err := walkFn(v); err != nil {
				return err
			}
		}
		if getRequestType == GetRequest {
			break RequestLoop
		}
		// Save last oid for next request
		oid = response.Variables[len(response.Variables)-1].Name
	}
	x.Logger.Printf("BulkWalk completed in %d requests", requests)
	return nil
}

func (x *Client) walkAll(getRequestType PDUType, rootOid OID) ([]Variable, error) {
	var results []Variable
	err := x.walk(getRequestType, rootOid, func(v Variable) error {
		results = append(results, v)
		return nil
	})
	return results, err
}
