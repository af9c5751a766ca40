package packet

import (
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Pingreq struct{}

type Pingresp struct{}

func (p *Pingreq) Type() Type  { return PINGREQ }
func (p *Pingresp) Type() Type { return PINGRESP }

func parsePingreq(fh FixedHeader, body []byte) (*Pingreq, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Pingreq, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 0 {
		return nil, &er.Err{Context: "Pingreq", Message: er.ErrRemainingLenMissmatch}
	}
	return &Pingreq{}, nil
}

func parsePingresp(fh FixedHeader, body []byte) (*Pingresp, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Pingresp, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 0 {
		return nil, &er.Err{Context: "Pingresp", Message: er.ErrRemainingLenMissmatch}
	}
	return &Pingresp{}, nil
}

func (p *Pingreq) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{byte(PINGREQ) << 4, 0x00})
	return err
}

func (p *Pingresp) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{byte(PINGRESP) << 4, 0x00})
	return err
}
