package packet

import (
	"encoding/binary"
	"io"

	"github.com/nslz/broquet/pkg/er"
)

// SUBACK return codes.
const (
	SubackMaxQoS0 byte = 0x00 // Maximum QoS 0
	SubackMaxQoS1 byte = 0x01 // Maximum QoS 1
	SubackMaxQoS2 byte = 0x02 // Maximum QoS 2
	SubackFailure byte = 0x80 // Failure
)

type Suback struct {
	PacketID    uint16
	ReturnCodes []byte
}

func (s *Suback) Type() Type { return SUBACK }

func parseSuback(fh FixedHeader, body []byte) (*Suback, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Suback, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}

	id, err := parsePacketID(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 3 {
		return nil, &er.Err{Context: "Suback", Message: er.ErrMalformedPacket}
	}

	codes := make([]byte, len(body)-2)
	copy(codes, body[2:])

	return &Suback{PacketID: id, ReturnCodes: codes}, nil
}

func (s *Suback) WriteTo(w io.Writer) error {
	body := make([]byte, 0, 2+len(s.ReturnCodes))
	body = binary.BigEndian.AppendUint16(body, s.PacketID)
	body = append(body, s.ReturnCodes...)

	fh := FixedHeader{PacketType: SUBACK, RemainingLength: len(body)}
	if err := fh.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
