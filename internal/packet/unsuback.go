package packet

import (
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Unsuback struct {
	PacketID uint16
}

func (u *Unsuback) Type() Type { return UNSUBACK }

func parseUnsuback(fh FixedHeader, body []byte) (*Unsuback, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Unsuback, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 2 {
		return nil, &er.Err{Context: "Unsuback", Message: er.ErrRemainingLenMissmatch}
	}

	id, err := parsePacketID(body)
	if err != nil {
		return nil, err
	}

	return &Unsuback{PacketID: id}, nil
}

func (u *Unsuback) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{
		byte(UNSUBACK) << 4,
		0x02, // Remaining Length
		byte(u.PacketID >> 8),
		byte(u.PacketID & 0xFF),
	})
	return err
}
