package artnet

import (
	"errors"
	"fmt"
	"net"

	"artnetctl/internal/clientmqtt"
	"artnetctl/internal/logger"
	"artnetctl/internal/packet"
	"artnetctl/internal/transport"
	"artnetctl/internal/universe"
)

// receive is the transport callback for every datagram. Our own broadcasts
// come back on the same socket and are skipped.
func (c *ArtNet) receive(b []byte, from *net.UDPAddr) {
	if c.isSelf(from) {
		c.logger.With(logger.Fields{"module": "art-net"}).Tracef("own frame of %d bytes skipped", len(b))
		return
	}
	c.Receive(b, from)
}

func (c *ArtNet) isSelf(from *net.UDPAddr) bool {
	return from != nil && c.selfPort != 0 && from.Port == c.selfPort && from.IP.Equal(c.ip)
}

// Receive feeds one datagram into the receive path as if it was read from
// the socket. Returns false for frames that are not Art-Net.
func (c *ArtNet) Receive(b []byte, from *net.UDPAddr) bool {
	p, ok := c.dispatcher.Dispatch(b, from)
	if !ok {
		c.metrics.PacketsIgnored.Inc()
		return false
	}
	c.metrics.PacketsReceived.WithLabelValues(p.OpCode().String()).Inc()
	return true
}

// handlePoll answers with our own poll reply, unicast to the poller.
func (c *ArtNet) handlePoll(_ packet.Packet, from *net.UDPAddr) {
	if from == nil {
		return
	}
	c.replyMu.Lock()
	c.replies++
	c.reply.SetNodeReport(fmt.Sprintf("#0001 [%04d] Power On Tests successful", c.replies%10000))
	raw := c.reply.Build().Bytes()
	c.replyMu.Unlock()

	to := &net.UDPAddr{IP: from.IP, Port: c.cfg.Port}
	if err := c.send(raw, to); errors.Is(err, transport.ErrClosed) {
		c.logger.With(logger.Fields{"module": "art-net"}).Debugf("poll from %v not answered: %v", from, err)
	} else if err != nil {
		c.logger.With(logger.Fields{"module": "art-net"}).Warnf("poll reply to %v not sent: %v", to, err)
	}
}

func (c *ArtNet) handlePollReply(p packet.Packet, _ *net.UDPAddr) {
	r, ok := p.(*packet.PollReply)
	if !ok {
		return
	}
	if r.Addr().Equal(c.ip) {
		return
	}
	node := c.nodes.Update(r, c.now())
	c.metrics.Nodes.Set(float64(c.nodes.Len()))
	c.logger.With(logger.Fields{"module": "art-net"}).Debugf("node | %s", node)

	if c.cfg.AutoUnicast {
		addr := &net.UDPAddr{IP: node.IP, Port: c.cfg.Port}
		for _, k := range node.Outputs {
			// Universes without data yet are picked up by a later reply.
			_ = c.store.AddDestination(k, addr)
		}
	}
	if c.publisher != nil {
		c.publisher.PublishNode(ConvertNodeInfo(node))
	}
}

func (c *ArtNet) handleTimeCode(p packet.Packet, from *net.UDPAddr) {
	tc, ok := p.(*packet.TimeCode)
	if !ok {
		return
	}
	c.lastTC.Store(tc)
	c.logger.With(logger.Fields{"module": "art-net"}).Tracef("timecode %s from %v", tc, from)
}

func (c *ArtNet) handleDMX(p packet.Packet, _ *net.UDPAddr) {
	d, ok := p.(*packet.DMX)
	if !ok {
		return
	}
	c.inputMu.Lock()
	c.inputs[universe.Key(d.PortAddress())] = d.Data
	c.inputMu.Unlock()
}

// ConvertNodeInfo преобразует структуры.
func ConvertNodeInfo(n Node) clientmqtt.NodeInfo {
	info := clientmqtt.NodeInfo{
		IP:        n.IP.String(),
		ShortName: n.ShortName,
		LongName:  n.LongName,
		Product:   n.Product.String(),
		Report:    n.Report,
		LastSeen:  n.LastSeen,
	}
	for _, k := range n.Outputs {
		info.Outputs = append(info.Outputs, uint16(k))
	}
	for _, k := range n.Inputs {
		info.Inputs = append(info.Inputs, uint16(k))
	}
	return info
}
