package relay

// Direction is one of the two fixed data paths of a relay.
type Direction int

const (
	// Outbound carries local input to the connection.
	Outbound Direction = iota
	// Inbound carries the connection to local output.
	Inbound
)

// Directions lists both directions in the order they are serviced.
var Directions = [2]Direction{Outbound, Inbound}

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "local->remote"
	case Inbound:
		return "remote->local"
	}
	return "invalid"
}

// path is the state of one direction. It starts active and is disabled
// exactly once, after which it is never serviced again.
type path struct {
	src, dst int
	active   bool
}

func (p *path) disable() bool {
	if !p.active {
		return false
	}
	p.active = false
	return true
}
