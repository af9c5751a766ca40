package packet

import (
	"encoding/binary"
	"io"

	"github.com/nslz/broquet/pkg/er"
)

type Unsubscribe struct {
	// Variable Header
	PacketID uint16

	// Payload
	TopicFilters []string
}

func (u *Unsubscribe) Type() Type { return UNSUBSCRIBE }

func parseUnsubscribe(fh FixedHeader, body []byte) (*Unsubscribe, error) {
	// UNSUBSCRIBE fixed header flags must be 0010.
	if fh.PacketTypeFlags != 0x02 {
		return nil, &er.Err{Context: "Unsubscribe, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}

	id, err := parsePacketID(body)
	if err != nil {
		return nil, err
	}

	u := &Unsubscribe{PacketID: id}
	offset := 2

	for offset < len(body) {
		topic, n, err := parseString(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n

		if topic == "" {
			return nil, &er.Err{Context: "Unsubscribe, Topic Filter", Message: er.ErrEmptyTopicFilter}
		}

		u.TopicFilters = append(u.TopicFilters, topic)
	}

	if len(u.TopicFilters) == 0 {
		return nil, &er.Err{Context: "Unsubscribe", Message: er.ErrNoTopicFilters}
	}

	return u, nil
}

func (u *Unsubscribe) WriteTo(w io.Writer) error {
	body := make([]byte, 0, 2+len(u.TopicFilters)*8)
	body = binary.BigEndian.AppendUint16(body, u.PacketID)
	for _, topic := range u.TopicFilters {
		body = appendString(body, topic)
	}

	fh := FixedHeader{PacketType: UNSUBSCRIBE, PacketTypeFlags: 0x02, RemainingLength: len(body)}
	if err := fh.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
