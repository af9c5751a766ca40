package packet

import (
	"encoding/binary"
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type SubscribeFilter struct {
	Topic string
	QoS   QoSLevel
}

type Subscribe struct {
	// Variable Header
	PacketID uint16

	// Payload
	Filters []SubscribeFilter
}

func (s *Subscribe) Type() Type { return SUBSCRIBE }

func parseSubscribe(fh FixedHeader, body []byte) (*Subscribe, error) {
	// SUBSCRIBE fixed header flags must be 0010.
	if fh.PacketTypeFlags != 0x02 {
		return nil, &er.Err{Context: "Subscribe, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}

	id, err := parsePacketID(body)
	if err != nil {
		return nil, err
	}

	s := &Subscribe{PacketID: id}
	offset := 2

	for offset < len(body) {
		topic, n, err := parseString(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n

		if topic == "" {
			return nil, &er.Err{Context: "Subscribe, Topic Filter", Message: er.ErrEmptyTopicFilter}
		}

		if offset >= len(body) {
			return nil, &er.Err{Context: "Subscribe, QoS", Message: er.ErrMalformedPacket}
		}

		qosByte := body[offset]
		offset++

		// Reserved bits 7-2 must be 0.
		if qosByte&0xFC != 0 {
			return nil, &er.Err{Context: "Subscribe, QoS", Message: er.ErrInvalidReservedFlags}
		}
		qos := QoSLevel(qosByte & 0x03)
		if qos > QoSExactlyOnce {
			return nil, &er.Err{Context: "Subscribe, QoS", Message: er.ErrInvalidQoSLevel}
		}

		s.Filters = append(s.Filters, SubscribeFilter{Topic: topic, QoS: qos})
	}

	if len(s.Filters) == 0 {
		return nil, &er.Err{Context: "Subscribe", Message: er.ErrNoTopicFilters}
	}

	return s, nil
}

func (s *Subscribe) WriteTo(w io.Writer) error {
	body := make([]byte, 0, 2+len(s.Filters)*8)
	body = binary.BigEndian.AppendUint16(body, s.PacketID)
	for _, f := range s.Filters {
		body = appendString(body, f.Topic)
		body = append(body, byte(f.QoS))
	}

	fh := FixedHeader{PacketType: SUBSCRIBE, PacketTypeFlags: 0x02, RemainingLength: len(body)}
	if err := fh.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
