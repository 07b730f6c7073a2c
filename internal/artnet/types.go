package artnet

import (
	"fmt"
	"net"
	"strings"
	"time"

	"artnetctl/internal/packet"
	"artnetctl/internal/products"
	"artnetctl/internal/universe"
)

// ChannelValue defines an ArtNet Universe and the value of the DMX channel.
type ChannelValue struct {
	Universe uint16 // Universe: 15 бит port address (net.subnet.universe).
	Channel  uint16 // Channel: номер байта (канал).
	Value    uint8  // Value: значение для канала.
}

// Node is a device seen in an ArtPollReply.
type Node struct {
	IP        net.IP
	BindIndex uint8
	ShortName string
	LongName  string
	Report    string
	Product   products.Descriptor
	ESTA      string
	Style     packet.Style
	Firmware  uint16
	MAC       net.HardwareAddr
	Inputs    []universe.Key
	Outputs   []universe.Key
	LastSeen  time.Time
}

func keysString(keys []universe.Key) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = k.Address().String()
	}
	return strings.Join(s, "; ")
}

// String returns a string representation of the given Node.
func (n Node) String() string {
	return fmt.Sprintf(
		"IP=%s name=%q product=%q style=%s inputs=%q outputs=%q",
		n.IP, n.ShortName, n.Product.String(), n.Style,
		keysString(n.Inputs), keysString(n.Outputs),
	)
}
