package packet

import (
	"encoding/binary"
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Publish struct {
	// Fixed Header flags
	DUP    bool
	QoS    QoSLevel
	Retain bool

	// Variable Header
	Topic    string
	PacketID uint16 // zero for QoS 0

	// Payload
	Payload []byte
}

func (p *Publish) Type() Type { return PUBLISH }

func parsePublish(fh FixedHeader, body []byte) (*Publish, error) {
	p := &Publish{
		DUP:    (fh.PacketTypeFlags & 0x08) != 0,
		QoS:    QoSLevel((fh.PacketTypeFlags & 0x06) >> 1),
		Retain: (fh.PacketTypeFlags & 0x01) != 0,
	}

	if p.QoS > QoSExactlyOnce {
		return nil, &er.Err{Context: "Publish, QoS", Message: er.ErrInvalidQoSLevel}
	}
	if p.DUP && p.QoS == QoSAtMostOnce {
		return nil, &er.Err{Context: "Publish, DUP Flag", Message: er.ErrInvalidReservedFlags}
	}

	topic, n, err := parseString(body)
	if err != nil {
		return nil, err
	}
	offset := n

	p.Topic = topic
	if err := ValidateTopicName(p.Topic); err != nil {
		return nil, err
	}

	if p.QoS != QoSAtMostOnce {
		id, err := parsePacketID(body[offset:])
		if err != nil {
			return nil, err
		}
		p.PacketID = id
		offset += 2
	}

	// The payload is the rest of the packet, no length prefix.
	if offset < len(body) {
		p.Payload = make([]byte, len(body)-offset)
		copy(p.Payload, body[offset:])
	}

	return p, nil
}

func (p *Publish) flags() byte {
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= byte(p.QoS&0x03) << 1
	if p.Retain {
		flags |= 0x01
	}
	return flags
}

func (p *Publish) WriteTo(w io.Writer) error {
	body := make([]byte, 0, 4+len(p.Topic)+len(p.Payload))
	body = appendString(body, p.Topic)
	if p.QoS != QoSAtMostOnce {
		body = binary.BigEndian.AppendUint16(body, p.PacketID)
	}
	body = append(body, p.Payload...)

	fh := FixedHeader{PacketType: PUBLISH, PacketTypeFlags: p.flags(), RemainingLength: len(body)}
	if err := fh.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
