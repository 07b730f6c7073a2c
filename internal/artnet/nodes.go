package artnet

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"artnetctl/internal/packet"
	"artnetctl/internal/products"
	"artnetctl/internal/universe"
)

// NodeTable remembers the nodes that answered a poll.
type NodeTable struct {
	mu       sync.RWMutex
	products *products.Table
	nodes    map[string]Node
}

// NewNodeTable конструктор.
func NewNodeTable(tbl *products.Table) *NodeTable {
	return &NodeTable{products: tbl, nodes: make(map[string]Node)}
}

func nodeID(ip net.IP, bindIndex uint8) string {
	return fmt.Sprintf("%s/%d", ip, bindIndex)
}

// Update stores the node described by r.
func (t *NodeTable) Update(r *packet.PollReply, now time.Time) Node {
	n := Node{
		IP:        r.Addr(),
		BindIndex: r.BindIndex,
		ShortName: r.ShortName,
		LongName:  r.LongName,
		Report:    r.NodeReport,
		Product:   t.products.Lookup(r.OEM),
		ESTA:      r.ESTA,
		Style:     r.Style,
		Firmware:  r.Firmware,
		MAC:       net.HardwareAddr(append([]byte(nil), r.MAC[:]...)),
		LastSeen:  now,
	}
	for i := 0; i < int(r.NumPorts) && i < packet.MaxPorts; i++ {
		p := r.Ports[i]
		base := universe.Key(uint16(r.Net)<<8 | uint16(r.SubNet)<<4)
		if p.Type.CanInput() {
			n.Inputs = append(n.Inputs, base|universe.Key(p.InputUniverse))
		}
		if p.Type.CanOutput() {
			n.Outputs = append(n.Outputs, base|universe.Key(p.OutputUniverse))
		}
	}

	t.mu.Lock()
	t.nodes[nodeID(n.IP, n.BindIndex)] = n
	t.mu.Unlock()
	return n
}

// Expire drops nodes not seen since before and returns them.
func (t *NodeTable) Expire(before time.Time) []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	var gone []Node
	for id, node := range t.nodes {
		if node.LastSeen.Before(before) {
			delete(t.nodes, id)
			gone = append(gone, node)
		}
	}
	return gone
}

// List returns the nodes ordered by IP and bind index.
func (t *NodeTable) List() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareIP(out[i].IP, out[j].IP); c != 0 {
			return c < 0
		}
		return out[i].BindIndex < out[j].BindIndex
	})
	return out
}

func compareIP(a, b net.IP) int {
	a4, b4 := a.To4(), b.To4()
	for i := range a4 {
		if a4[i] != b4[i] {
			if a4[i] < b4[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t *NodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
