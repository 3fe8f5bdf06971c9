package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrNoRoute = errors.New("no route between nodes")

// Switch interconnects links. A capacity <= 0 means the switch is not a
// bottleneck.
type Switch struct {
	ID       string
	Capacity int
}

// Bounded reports whether the switch capacity limits traffic.
func (s *Switch) Bounded() bool { return s.Capacity > 0 && s.Capacity != math.MaxInt }

// Endpoint is one side of a link: a node or a switch.
type Endpoint struct {
	Node   Node
	Switch *Switch
}

// NodeEndpoint returns the endpoint for n.
func NodeEndpoint(n Node) Endpoint { return Endpoint{Node: n} }

// SwitchEndpoint returns the endpoint for s.
func SwitchEndpoint(s *Switch) Endpoint { return Endpoint{Switch: s} }

func (e Endpoint) key() string {
	if e.Switch != nil {
		return "switch/" + e.Switch.ID
	}
	return "node/" + string(e.Node)
}

func (e Endpoint) String() string { return e.key() }

// Link is a full-duplex link with the same capacity in both directions.
type Link struct {
	ID       string
	Capacity int
	A, B     Endpoint
}

// LinkDirection tells how a route crosses a link.
type LinkDirection int

const (
	LinkNone LinkDirection = iota
	// Uplink is a traversal from A to B.
	Uplink
	// Downlink is a traversal from B to A.
	Downlink
)

func (d LinkDirection) String() string {
	switch d {
	case Uplink:
		return "uplink"
	case Downlink:
		return "downlink"
	}
	return "none"
}

// Routing computes the links crossed by a migration between two nodes.
type Routing interface {
	Path(src, dst Node) ([]*Link, error)
	// MaxBandwidth is the bandwidth of the bottleneck link of the path.
	MaxBandwidth(src, dst Node) (int, error)
	Direction(src, dst Node, l *Link) LinkDirection
}

// Network is the topology view of a model.
type Network struct {
	switches []*Switch
	links    []*Link
	routing  Routing
}

// NewNetwork returns an empty topology routed by shortest paths.
func NewNetwork() *Network {
	n := &Network{}
	n.routing = NewShortestPathRouting(n)
	return n
}

// AddSwitch declares a switch.
func (n *Network) AddSwitch(id string, capacity int) *Switch {
	s := &Switch{ID: id, Capacity: capacity}
	n.switches = append(n.switches, s)
	return s
}

// Connect declares a link between two endpoints.
func (n *Network) Connect(id string, capacity int, a, b Endpoint) *Link {
	l := &Link{ID: id, Capacity: capacity, A: a, B: b}
	n.links = append(n.links, l)
	if r, ok := n.routing.(*ShortestPathRouting); ok {
		r.reset()
	}
	return l
}

func (n *Network) Switches() []*Switch { return n.switches }
func (n *Network) Links() []*Link      { return n.links }
func (n *Network) Routing() Routing    { return n.routing }

// SetRouting replaces the routing policy.
func (n *Network) SetRouting(r Routing) { n.routing = r }

// Switch looks a switch up by id.
func (n *Network) Switch(id string) (*Switch, bool) {
	for _, s := range n.switches {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// ConnectedLinks returns the links plugged into s.
func (n *Network) ConnectedLinks(s *Switch) []*Link {
	var out []*Link
	for _, l := range n.links {
		if l.A.Switch == s || l.B.Switch == s {
			out = append(out, l)
		}
	}
	return out
}

type hop struct {
	link    *Link
	forward bool
}

// ShortestPathRouting routes through the path with the fewest links.
// Paths are computed once and cached until the topology changes.
type ShortestPathRouting struct {
	net   *Network
	cache map[[2]Node][]hop
}

// NewShortestPathRouting builds the default routing of net.
func NewShortestPathRouting(net *Network) *ShortestPathRouting {
	return &ShortestPathRouting{net: net, cache: make(map[[2]Node][]hop)}
}

func (r *ShortestPathRouting) reset() {
	r.cache = make(map[[2]Node][]hop)
}

func (r *ShortestPathRouting) hops(src, dst Node) ([]hop, error) {
	if src == dst {
		return nil, nil
	}
	k := [2]Node{src, dst}
	if h, ok := r.cache[k]; ok {
		return h, nil
	}
	type prev struct {
		key string
		hop hop
	}
	from := NodeEndpoint(src).key()
	to := NodeEndpoint(dst).key()
	visited := map[string]prev{from: {}}
	queue := []string{from}
	for len(queue) > 0 && !contains(visited, to) {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range r.net.links {
			var next string
			var fwd bool
			switch cur {
			case l.A.key():
				next, fwd = l.B.key(), true
			case l.B.key():
				next, fwd = l.A.key(), false
			default:
				continue
			}
			if contains(visited, next) {
				continue
			}
			// nodes relay nothing; only switches forward traffic
			visited[next] = prev{key: cur, hop: hop{link: l, forward: fwd}}
			if next != to && strings.HasPrefix(next, "node/") {
				continue
			}
			queue = append(queue, next)
		}
	}
	if !contains(visited, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoRoute, src, dst)
	}
	var path []hop
	for cur := to; cur != from; {
		p := visited[cur]
		path = append([]hop{p.hop}, path...)
		cur = p.key
	}
	r.cache[k] = path
	return path, nil
}

func contains[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

func (r *ShortestPathRouting) Path(src, dst Node) ([]*Link, error) {
	h, err := r.hops(src, dst)
	if err != nil {
		return nil, err
	}
	out := make([]*Link, len(h))
	for i, x := range h {
		out[i] = x.link
	}
	return out, nil
}

func (r *ShortestPathRouting) MaxBandwidth(src, dst Node) (int, error) {
	h, err := r.hops(src, dst)
	if err != nil {
		return 0, err
	}
	if len(h) == 0 {
		return 0, nil
	}
	bw := math.MaxInt
	for _, x := range h {
		bw = min(bw, x.link.Capacity)
	}
	return bw, nil
}

func (r *ShortestPathRouting) Direction(src, dst Node, l *Link) LinkDirection {
	h, err := r.hops(src, dst)
	if err != nil {
		return LinkNone
	}
	for _, x := range h {
		if x.link == l {
			if x.forward {
				return Uplink
			}
			return Downlink
		}
	}
	return LinkNone
}
