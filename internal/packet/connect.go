package packet

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/nslz/broquet/pkg/er"
)

const (
	protocolName  = "MQTT"
	protocolLevel = 4 // MQTT 3.1.1
)

type Connect struct {
	// Variable Header
	CleanSession bool
	WillFlag     bool
	WillQoS      QoSLevel
	WillRetain   bool
	UsernameFlag bool
	PasswordFlag bool
	KeepAlive    uint16

	// Payload
	ClientID    string
	WillTopic   string // only meaningful when WillFlag is set
	WillMessage string // only meaningful when WillFlag is set
	Username    string
	Password    string

	// AssignedClientID reports that the client sent an empty client id and
	// the server minted one for it.
	AssignedClientID bool
}

func (c *Connect) Type() Type { return CONNECT }

func parseConnect(fh FixedHeader, body []byte) (*Connect, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Connect, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) < 10 {
		return nil, &er.Err{Context: "Connect", Message: er.ErrMalformedPacket}
	}

	c := &Connect{}
	offset := 0

	name, n, err := parseString(body)
	if err != nil {
		return nil, err
	}
	offset += n
	if name != protocolName {
		return nil, &er.Err{Context: "Connect, ProtocolName", Message: er.ErrUnsupportedProtocolName}
	}

	if body[offset] != protocolLevel {
		return nil, &er.Err{Context: "Connect, ProtocolLevel", Message: er.ErrUnsupportedProtocolLevel}
	}
	offset++

	flags := body[offset]
	offset++

	c.UsernameFlag = (flags & 0x80) != 0 // bit 7
	c.PasswordFlag = (flags & 0x40) != 0 // bit 6
	c.WillRetain = (flags & 0x20) != 0   // bit 5
	c.WillQoS = QoSLevel((flags & 0x18) >> 3)
	c.WillFlag = (flags & 0x04) != 0     // bit 2
	c.CleanSession = (flags & 0x02) != 0 // bit 1

	if (flags & 0x01) != 0 { // reserved bit must be 0
		return nil, &er.Err{Context: "Connect, Flags", Message: er.ErrInvalidReservedFlags}
	}
	if c.WillFlag && c.WillQoS > QoSExactlyOnce {
		return nil, &er.Err{Context: "Connect, WillQoS", Message: er.ErrInvalidWillQoS}
	}
	if !c.UsernameFlag && c.PasswordFlag {
		return nil, &er.Err{Context: "Connect, Flags", Message: er.ErrPasswordWithoutUsername}
	}

	if offset+2 > len(body) {
		return nil, &er.Err{Context: "Connect, KeepAlive", Message: er.ErrMalformedPacket}
	}
	c.KeepAlive = binary.BigEndian.Uint16(body[offset : offset+2])
	offset += 2

	c.ClientID, n, err = parseString(body[offset:])
	if err != nil {
		return nil, &er.Err{Context: "Connect, ClientID", Message: er.ErrMalformedPacket}
	}
	offset += n

	if err := c.validateClientID(); err != nil {
		return nil, err
	}
	if c.ClientID == "" {
		// Empty client id with clean session: mint one on the client's behalf.
		c.ClientID = uuid.NewString()
		c.AssignedClientID = true
	}

	if c.WillFlag {
		c.WillTopic, n, err = parseString(body[offset:])
		if err != nil {
			return nil, &er.Err{Context: "Connect, WillTopic", Message: er.ErrMalformedPacket}
		}
		offset += n

		c.WillMessage, n, err = parseString(body[offset:])
		if err != nil {
			return nil, &er.Err{Context: "Connect, WillMessage", Message: er.ErrMalformedPacket}
		}
		offset += n
	}

	if c.UsernameFlag {
		c.Username, n, err = parseString(body[offset:])
		if err != nil {
			return nil, &er.Err{Context: "Connect, Username", Message: er.ErrMalformedPacket}
		}
		offset += n
	}

	if c.PasswordFlag {
		c.Password, n, err = parseString(body[offset:])
		if err != nil {
			return nil, &er.Err{Context: "Connect, Password", Message: er.ErrMalformedPacket}
		}
		offset += n
	}

	if offset != len(body) {
		return nil, &er.Err{Context: "Connect", Message: er.ErrRemainingLenMissmatch}
	}

	return c, nil
}

// validateClientID enforces the 3.1.1 server rules: empty ids need clean
// session, at most 23 bytes, characters limited to 0-9a-zA-Z.
func (c *Connect) validateClientID() error {
	if c.ClientID == "" {
		if !c.CleanSession {
			return &er.Err{Context: "Connect, ClientID", Message: er.ErrIdentifierRejected}
		}
		return nil
	}

	if len(c.ClientID) > 23 {
		return &er.Err{Context: "Connect, ClientID", Message: er.ErrClientIDLengthExceed}
	}

	for _, char := range c.ClientID {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-", char) {
			return &er.Err{Context: "Connect, ClientID", Message: er.ErrInvalidCharsClientID}
		}
	}

	return nil
}

func (c *Connect) flags() byte {
	var flags byte
	if c.UsernameFlag {
		flags |= 0x80
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.WillRetain {
		flags |= 0x20
	}
	flags |= byte(c.WillQoS&0x03) << 3
	if c.WillFlag {
		flags |= 0x04
	}
	if c.CleanSession {
		flags |= 0x02
	}
	return flags
}

func (c *Connect) WriteTo(w io.Writer) error {
	body := make([]byte, 0, 12+len(c.ClientID))
	body = appendString(body, protocolName)
	body = append(body, protocolLevel, c.flags())
	body = binary.BigEndian.AppendUint16(body, c.KeepAlive)
	body = appendString(body, c.ClientID)
	if c.WillFlag {
		body = appendString(body, c.WillTopic)
		body = appendString(body, c.WillMessage)
	}
	if c.UsernameFlag {
		body = appendString(body, c.Username)
	}
	if c.PasswordFlag {
		body = appendString(body, c.Password)
	}

	fh := FixedHeader{PacketType: CONNECT, RemainingLength: len(body)}
	if err := fh.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
