// Package nid implements the node identity described in spec 3: a
// serviceId/serverId pair with a canonical textual form.
package nid

import (
	"fmt"
	"strconv"
	"strings"
)

// ServiceType names the three node roles a node binds to at startup (spec 2).
type ServiceType string

const (
	Session ServiceType = "Session"
	Play    ServiceType = "Play"
	Api     ServiceType = "Api"
)

// NID is a node identity: serviceId:serverId. Comparable by value, usable
// as a map key.
type NID struct {
	ServiceId uint16
	ServerId  string
}

// New builds a NID.
func New(serviceId uint16, serverId string) NID {
	return NID{ServiceId: serviceId, ServerId: serverId}
}

// IsZero reports whether n is the zero-value NID (no node identity).
func (n NID) IsZero() bool {
	return n.ServiceId == 0 && n.ServerId == ""
}

// String renders the canonical textual form "serviceId:serverId".
func (n NID) String() string {
	return fmt.Sprintf("%d:%s", n.ServiceId, n.ServerId)
}

// Parse parses the canonical textual form produced by String.
func Parse(s string) (NID, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return NID{}, fmt.Errorf("nid: malformed identity %q", s)
	}
	id, err := strconv.ParseUint(s[:idx], 10, 16)
	if err != nil {
		return NID{}, fmt.Errorf("nid: malformed serviceId in %q: %w", s, err)
	}
	return NID{ServiceId: uint16(id), ServerId: s[idx+1:]}, nil
}
