package packet

import (
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Disconnect struct{}

func (d *Disconnect) Type() Type { return DISCONNECT }

func parseDisconnect(fh FixedHeader, body []byte) (*Disconnect, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Disconnect, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 0 {
		return nil, &er.Err{Context: "Disconnect", Message: er.ErrRemainingLenMissmatch}
	}
	return &Disconnect{}, nil
}

func (d *Disconnect) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{byte(DISCONNECT) << 4, 0x00})
	return err
}
