// Package address defines the identity primitives of the runtime: the
// scheduler-level PostCode and the actor-level Address built on top of it.
package address

import (
	"fmt"
	"strconv"
	"strings"
)

// Box is a per-scheduler key into that scheduler's actor directory. It is
// unique within a scheduler for the lifetime of that scheduler.
type Box uint64

// PostCode identifies a scheduler. Host carries the network-host part
// (one per OS process); Scheduler carries the scheduler-local part. Two
// PostCodes with equal Host are co-located in the same process.
type PostCode struct {
	Host      string
	Scheduler string
}

// NullPostCode is the zero-value sentinel: no host, no scheduler.
var NullPostCode = PostCode{}

func (p PostCode) IsNull() bool {
	return p == NullPostCode
}

func (p PostCode) String() string {
	if p.IsNull() {
		return ""
	}
	return p.Host + ":" + p.Scheduler
}

// SameHost reports whether p and other name schedulers in the same process.
func (p PostCode) SameHost(other PostCode) bool {
	return p.Host == other.Host
}

// Port extracts the numeric scheduler-local part, used by the positioner's
// axis mapping (spec §4.4). A non-numeric or empty Scheduler field yields 0.
func (p PostCode) Port() int {
	n := 0
	for _, c := range p.Scheduler {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// New builds a PostCode for the given host part and scheduler-local port.
func New(host string, port int) PostCode {
	return PostCode{Host: host, Scheduler: fmt.Sprintf("%d", port)}
}

// ParsePostCode inverts PostCode.String for a numeric-port PostCode, used
// when a PostCode has to travel as a plain string (e.g. a cluster
// membership provider's key/value store).
func ParsePostCode(s string) (host string, port int, err error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("address: malformed postcode %q", s)
	}
	port, err = strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("address: malformed postcode %q: %w", s, err)
	}
	return s[:idx], port, nil
}

// Address globally identifies an actor: the scheduler that holds it plus
// its box within that scheduler's directory.
type Address struct {
	PostCode PostCode
	Box      Box
}

// NullAddress is the zero-value sentinel: PostCode empty, Box zero.
var NullAddress = Address{}

func (a Address) IsNull() bool {
	return a == NullAddress
}

func (a Address) String() string {
	if a.IsNull() {
		return "<null>"
	}
	return fmt.Sprintf("%s/%d", a.PostCode, a.Box)
}

// Of builds an Address from a scheduler's PostCode and a box.
func Of(postcode PostCode, box Box) Address {
	return Address{PostCode: postcode, Box: box}
}
