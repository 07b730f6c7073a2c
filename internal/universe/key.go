package universe

import (
	"fmt"

	"artnetctl/internal/packet"
	"github.com/Haba1234/go-artnet"
)

// Key is the 15 bit port address of a universe: net in bits 8-14, subnet in
// bits 4-7, universe in bits 0-3.
type Key uint16

// NewKey validates the three address parts.
func NewKey(net, subnet, universe int) (Key, error) {
	if net < 0 || net > 127 {
		return 0, &packet.RangeError{Field: "net", Value: net, Min: 0, Max: 127}
	}
	if subnet < 0 || subnet > 15 {
		return 0, &packet.RangeError{Field: "subnet", Value: subnet, Min: 0, Max: 15}
	}
	if universe < 0 || universe > 15 {
		return 0, &packet.RangeError{Field: "universe", Value: universe, Min: 0, Max: 15}
	}
	return Key(net<<8 | subnet<<4 | universe), nil
}

func (k Key) Net() int      { return int(k>>8) & 0x7f }
func (k Key) SubNet() int   { return int(k>>4) & 0x0f }
func (k Key) Universe() int { return int(k) & 0x0f }

// Address converts the key to the art-net address: старший байт - Net,
// младший - SubUni.
func (k Key) Address() artnet.Address {
	return artnet.Address{
		Net:    uint8(k.Net()),
		SubUni: uint8(k.SubNet()<<4 | k.Universe()),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d.%d.%d", k.Net(), k.SubNet(), k.Universe())
}
