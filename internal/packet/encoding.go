package packet

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/nslz/broquet/pkg/er"
)

// parseString reads a 16-bit length prefixed UTF-8 string from data.
// Returns the string and the number of bytes consumed.
func parseString(data []byte) (string, int, error) {
	if len(data) < 2 {
		return "", 0, &er.Err{Context: "ParseString", Message: er.ErrShortBuffer}
	}

	length := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+length {
		return "", 0, &er.Err{Context: "ParseString", Message: er.ErrShortBuffer}
	}

	s := string(data[2 : 2+length])
	if !utf8.ValidString(s) {
		return "", 0, &er.Err{Context: "ParseString", Message: er.ErrInvalidUTF8String}
	}

	return s, 2 + length, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func parsePacketID(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, &er.Err{Context: "ParsePacketID", Message: er.ErrMissingPacketID}
	}

	id := binary.BigEndian.Uint16(data[:2])
	if id == 0 {
		return 0, &er.Err{Context: "ParsePacketID", Message: er.ErrInvalidPacketID}
	}

	return id, nil
}

func containsWildcards(topic string) bool {
	for _, char := range topic {
		if char == '+' || char == '#' {
			return true
		}
	}
	return false
}

// ValidateTopicName validates a topic name for publishing. Wildcards are
// only legal in subscription filters.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return &er.Err{Context: "ValidateTopicName", Message: er.ErrEmptyTopic}
	}

	if !utf8.ValidString(topic) {
		return &er.Err{Context: "ValidateTopicName", Message: er.ErrInvalidUTF8String}
	}

	for _, r := range topic {
		if r == 0 {
			return &er.Err{Context: "ValidateTopicName", Message: er.ErrInvalidUTF8String}
		}
	}

	if containsWildcards(topic) {
		return &er.Err{Context: "ValidateTopicName", Message: er.ErrWildcardsNotAllowed}
	}

	return nil
}

// ValidateTopicFilter validates a subscription topic filter: '#' must be the
// final level, '+' must occupy a whole level.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrEmptyTopicFilter}
	}

	if !utf8.ValidString(filter) {
		return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidUTF8String}
	}

	runes := []rune(filter)
	length := len(runes)

	for i, r := range runes {
		switch r {
		case 0:
			return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidUTF8String}

		case '#':
			// Multi-level wildcard must be the last character and either
			// stand alone or follow a separator.
			if i != length-1 {
				return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidWildcard}
			}
			if i > 0 && runes[i-1] != '/' {
				return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidWildcard}
			}

		case '+':
			// Single-level wildcard must occupy a whole level.
			if i > 0 && runes[i-1] != '/' {
				return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidWildcard}
			}
			if i < length-1 && runes[i+1] != '/' {
				return &er.Err{Context: "ValidateTopicFilter", Message: er.ErrInvalidWildcard}
			}
		}
	}

	return nil
}
