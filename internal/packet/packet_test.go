package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nslz/broquet/pkg/er"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, p.WriteTo(&buf))

	decoded, err := ReadPacket(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len(), "decoder must consume the whole packet")
	return decoded
}

func TestRoundTripConnect(t *testing.T) {
	p := &Connect{
		CleanSession: true,
		WillFlag:     true,
		WillQoS:      QoSAtLeastOnce,
		WillRetain:   true,
		UsernameFlag: true,
		PasswordFlag: true,
		KeepAlive:    60,
		ClientID:     "c1",
		WillTopic:    "status/c1",
		WillMessage:  "down",
		Username:     "alice",
		Password:     "pw1",
	}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripConnectWithoutOptionalFields(t *testing.T) {
	p := &Connect{CleanSession: true, KeepAlive: 30, ClientID: "bare"}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripConnack(t *testing.T) {
	for _, p := range []*Connack{
		{SessionPresent: false, ReturnCode: ConnectionAccepted},
		{SessionPresent: true, ReturnCode: ConnectionAccepted},
		{SessionPresent: false, ReturnCode: BadUsernameOrPassword},
	} {
		assert.Equal(t, p, roundTrip(t, p))
	}
}

func TestRoundTripPublish(t *testing.T) {
	qos0 := &Publish{Topic: "room/a", Payload: []byte("hello")}
	assert.Equal(t, qos0, roundTrip(t, qos0))

	qos1 := &Publish{
		DUP:      true,
		QoS:      QoSAtLeastOnce,
		Retain:   true,
		Topic:    "light",
		PacketID: 7,
		Payload:  []byte("on"),
	}
	assert.Equal(t, qos1, roundTrip(t, qos1))
}

func TestRoundTripPublishEmptyPayload(t *testing.T) {
	p := &Publish{Topic: "light", Retain: true}
	decoded := roundTrip(t, p).(*Publish)
	assert.Empty(t, decoded.Payload)
	assert.True(t, decoded.Retain)
}

func TestRoundTripPuback(t *testing.T) {
	p := &Puback{PacketID: 1234}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripSubscribe(t *testing.T) {
	p := &Subscribe{
		PacketID: 42,
		Filters: []SubscribeFilter{
			{Topic: "room/a", QoS: QoSAtMostOnce},
			{Topic: "room/+/temp", QoS: QoSAtLeastOnce},
			{Topic: "status/#", QoS: QoSAtLeastOnce},
		},
	}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripSuback(t *testing.T) {
	p := &Suback{PacketID: 42, ReturnCodes: []byte{SubackMaxQoS0, SubackMaxQoS1, SubackFailure}}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripUnsubscribe(t *testing.T) {
	p := &Unsubscribe{PacketID: 9, TopicFilters: []string{"room/a", "status/#"}}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripUnsuback(t *testing.T) {
	p := &Unsuback{PacketID: 9}
	assert.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripEmptyBodyPackets(t *testing.T) {
	assert.Equal(t, &Pingreq{}, roundTrip(t, &Pingreq{}))
	assert.Equal(t, &Pingresp{}, roundTrip(t, &Pingresp{}))
	assert.Equal(t, &Disconnect{}, roundTrip(t, &Disconnect{}))
}

func TestRemainingLengthMinimalEncoding(t *testing.T) {
	cases := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{MaxRemainingLength, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		require.NoError(t, encodeRemainingLength(&buf, tc.length))
		assert.Equal(t, tc.want, buf.Bytes(), "length %d", tc.length)

		got, err := decodeRemainingLength(bytes.NewReader(tc.want))
		require.NoError(t, err)
		assert.Equal(t, tc.length, got)
	}
}

func TestRemainingLengthRejectsFifthContinuationByte(t *testing.T) {
	_, err := decodeRemainingLength(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}))
	assert.ErrorIs(t, err, er.ErrRemainingLenExceeded)
}

func TestReadPacketRejectsUnknownType(t *testing.T) {
	for _, control := range []byte{0x00, 0x50, 0x60, 0x70, 0xF0} {
		_, err := ReadPacket(bytes.NewReader([]byte{control, 0x00}))
		assert.ErrorIs(t, err, er.ErrInvalidPacketType, "control byte %#x", control)
	}
}

func TestReadPacketRejectsTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	p := &Publish{Topic: "room/a", Payload: []byte("hello")}
	require.NoError(t, p.WriteTo(&buf))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadPacket(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, er.ErrShortBuffer)
}

func TestConnectRejectsBadProtocolName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{CleanSession: true, ClientID: "c1"}).WriteTo(&buf))

	raw := buf.Bytes()
	copy(raw[4:8], "MQIs")
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, er.ErrUnsupportedProtocolName)
}

func TestConnectRejectsBadProtocolLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{CleanSession: true, ClientID: "c1"}).WriteTo(&buf))

	raw := buf.Bytes()
	raw[8] = 3
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, er.ErrUnsupportedProtocolLevel)
}

func TestConnectRejectsPasswordWithoutUsername(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{CleanSession: true, ClientID: "c1"}).WriteTo(&buf))

	raw := buf.Bytes()
	raw[9] |= 0x40 // password flag alone
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, er.ErrPasswordWithoutUsername)
}

func TestConnectAssignsClientIDWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{CleanSession: true}).WriteTo(&buf))

	decoded, err := ReadPacket(&buf)
	require.NoError(t, err)

	c := decoded.(*Connect)
	assert.True(t, c.AssignedClientID)
	assert.NotEmpty(t, c.ClientID)
}

func TestConnectRejectsEmptyClientIDWithoutCleanSession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{}).WriteTo(&buf))

	_, err := ReadPacket(&buf)
	assert.ErrorIs(t, err, er.ErrIdentifierRejected)
}

func TestConnectRejectsOverlongClientID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Connect{CleanSession: true, ClientID: "abcdefghijklmnopqrstuvwxyz"}).WriteTo(&buf))

	_, err := ReadPacket(&buf)
	assert.ErrorIs(t, err, er.ErrClientIDLengthExceed)
}

func TestPublishRejectsWildcardTopic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Publish{Topic: "room/+", Payload: []byte("x")}).WriteTo(&buf))

	_, err := ReadPacket(&buf)
	assert.ErrorIs(t, err, er.ErrWildcardsNotAllowed)
}

func TestPublishRejectsZeroPacketIDAtQoS1(t *testing.T) {
	// QoS 1 publish to "t" with packet id 0x0000 and payload "x".
	raw := []byte{0x32, 0x06, 0x00, 0x01, 't', 0x00, 0x00, 'x'}
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, er.ErrInvalidPacketID)
}

func TestSubscribeRejectsBadFixedHeaderFlags(t *testing.T) {
	var buf bytes.Buffer
	p := &Subscribe{PacketID: 1, Filters: []SubscribeFilter{{Topic: "a", QoS: 0}}}
	require.NoError(t, p.WriteTo(&buf))

	raw := buf.Bytes()
	raw[0] = byte(SUBSCRIBE) << 4 // flags 0000 instead of 0010
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, er.ErrInvalidReservedFlags)
}

func TestSubscribeRejectsMissingFilters(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{0x82, 0x02, 0x00, 0x01}))
	require.Error(t, err)

	var e *er.Err
	assert.True(t, errors.As(err, &e))
}

func TestValidateTopicFilter(t *testing.T) {
	valid := []string{"a", "a/b", "#", "/#", "a/#", "+", "a/+", "+/b", "a/+/c"}
	for _, f := range valid {
		assert.NoError(t, ValidateTopicFilter(f), "filter %q", f)
	}

	invalid := []string{"", "a/#/b", "a#", "a+", "+a", "a/b+"}
	for _, f := range invalid {
		assert.Error(t, ValidateTopicFilter(f), "filter %q", f)
	}
}
