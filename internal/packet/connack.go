package packet

import (
	"io"

	"github.com/nslz/broquet/pkg/er"
)

// CONNACK return codes.
const (
	ConnectionAccepted          byte = 0x00 // Connection Accepted
	UnacceptableProtocolVersion byte = 0x01 // The Server does not support the level of the MQTT protocol requested by the Client
	IdentifierRejected          byte = 0x02 // The Client identifier is correct UTF-8 but not allowed by the Server
	ServerUnavailable           byte = 0x03 // The Network Connection has been made but the MQTT service is unavailable
	BadUsernameOrPassword       byte = 0x04 // The data in the user name or password is malformed
	NotAuthorized               byte = 0x05 // The Client is not authorized to connect
)

type Connack struct {
	SessionPresent bool
	ReturnCode     byte
}

func (c *Connack) Type() Type { return CONNACK }

func parseConnack(fh FixedHeader, body []byte) (*Connack, error) {
	if fh.PacketTypeFlags != 0 {
		return nil, &er.Err{Context: "Connack, Fixed Header", Message: er.ErrInvalidReservedFlags}
	}
	if len(body) != 2 {
		return nil, &er.Err{Context: "Connack", Message: er.ErrRemainingLenMissmatch}
	}
	if body[0]&0xFE != 0 {
		return nil, &er.Err{Context: "Connack, Acknowledge Flags", Message: er.ErrInvalidReservedFlags}
	}

	return &Connack{
		SessionPresent: body[0]&0x01 != 0,
		ReturnCode:     body[1],
	}, nil
}

func (c *Connack) WriteTo(w io.Writer) error {
	flags := byte(0x00)
	if c.SessionPresent {
		flags = 0x01
	}

	_, err := w.Write([]byte{
		byte(CONNACK) << 4,
		0x02, // Remaining Length (always 2)
		flags,
		c.ReturnCode,
	})
	return err
}
