package packet

import (
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Puback struct {
	PacketID uint16
}

func (p *Puback) Type() Type { return PUBACK }

func parsePuback(fh FixedHeader, body []byte) (*Puback, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Puback, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 2 {
		return nil, &er.Err{Context: "Puback", Message: er.ErrRemainingLenMissmatch}
	}

	id, err := parsePacketID(body)
	if err != nil {
		return nil, err
	}

	return &Puback{PacketID: id}, nil
}

func (p *Puback) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{
		byte(PUBACK) << 4,
		0x02, // Remaining Length
		byte(p.PacketID >> 8),
		byte(p.PacketID & 0xFF),
	})
	return err
}
