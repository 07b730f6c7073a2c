package artnet

import (
	"net"
	"testing"
	"time"

	"artnetctl/internal/packet"
	"artnetctl/internal/products"
	"artnetctl/internal/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(t *testing.T, ip net.IP, bind int) *packet.PollReply {
	t.Helper()
	b := packet.NewPollReplyBuilder().SetShortName("node")
	require.NoError(t, b.SetIP(ip))
	require.NoError(t, b.SetBindIndex(bind))
	require.NoError(t, b.SetNet(2))
	require.NoError(t, b.SetSubNet(1))
	require.NoError(t, b.SetNumPorts(2))
	require.NoError(t, b.SetPort(0, packet.Port{Type: packet.PortOutput, OutputUniverse: 5}))
	require.NoError(t, b.SetPort(1, packet.Port{Type: packet.PortInput, InputUniverse: 6}))
	// Ports past NumPorts are not reported.
	require.NoError(t, b.SetPort(2, packet.Port{Type: packet.PortOutput, OutputUniverse: 7}))
	return b.Build()
}

func TestNodeTableUpdate(t *testing.T) {
	tbl := NewNodeTable(products.Default())
	now := time.Now()
	n := tbl.Update(reply(t, net.IPv4(10, 0, 0, 9), 1), now)

	assert.Equal(t, "10.0.0.9", n.IP.String())
	assert.Equal(t, []universe.Key{0x0215}, n.Outputs)
	assert.Equal(t, []universe.Key{0x0216}, n.Inputs)
	assert.True(t, n.Product.IsUnknown())
	assert.Contains(t, n.String(), `name="node"`)

	tbl.Update(reply(t, net.IPv4(10, 0, 0, 9), 1), now)
	assert.Equal(t, 1, tbl.Len(), "same node and bind index")
	tbl.Update(reply(t, net.IPv4(10, 0, 0, 9), 2), now)
	tbl.Update(reply(t, net.IPv4(10, 0, 0, 3), 1), now)

	list := tbl.List()
	require.Len(t, list, 3)
	assert.Equal(t, "10.0.0.3", list[0].IP.String())
	assert.Equal(t, uint8(1), list[1].BindIndex)
	assert.Equal(t, uint8(2), list[2].BindIndex)
}

func TestNodeTableExpire(t *testing.T) {
	tbl := NewNodeTable(products.Default())
	now := time.Now()
	tbl.Update(reply(t, net.IPv4(10, 0, 0, 1), 1), now.Add(-10*time.Second))
	tbl.Update(reply(t, net.IPv4(10, 0, 0, 2), 1), now)

	gone := tbl.Expire(now.Add(-5 * time.Second))
	require.Len(t, gone, 1)
	assert.Equal(t, "10.0.0.1", gone[0].IP.String())
	require.Len(t, tbl.List(), 1)
	assert.Equal(t, "10.0.0.2", tbl.List()[0].IP.String())
}

func TestMatchIP(t *testing.T) {
	_, cidr, err := net.ParseCIDR("192.168.6.0/24")
	require.NoError(t, err)
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.IPv4(10, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.IPv4(192, 168, 6, 20), Mask: net.CIDRMask(24, 32)},
	}
	assert.Equal(t, "192.168.6.20", matchIP(addrs, cidr).String())
	assert.Nil(t, matchIP(addrs[:2], cidr))

	_, err = FindArtNetIP("not a cidr")
	assert.Error(t, err)
}
