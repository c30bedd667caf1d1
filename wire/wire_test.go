package wire

import (
	"bufio"
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	Convey("a frame written and read back decodes to the same command and payload", t, func() {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		payload := IDPayload(0xD0, 8, 4)

		err := WriteFrame(w, ID, payload)
		So(err, ShouldBeNil)

		r := bufio.NewReader(&buf)
		f, err := ReadFrame(r)
		So(err, ShouldBeNil)
		So(f.Command, ShouldEqual, ID)
		So(f.Payload, ShouldResemble, payload)
	})

	Convey("an empty payload round-trips too", t, func() {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		So(WriteFrame(w, Debug, nil), ShouldBeNil)

		r := bufio.NewReader(&buf)
		f, err := ReadFrame(r)
		So(err, ShouldBeNil)
		So(f.Command, ShouldEqual, Debug)
		So(len(f.Payload), ShouldEqual, 0)
	})
}

func TestReadFrameResyncsPastGarbage(t *testing.T) {
	Convey("garbage before the sync byte is skipped", t, func() {
		var good bytes.Buffer
		w := bufio.NewWriter(&good)
		So(WriteFrame(w, Sensor, []byte{1, 2, 3}), ShouldBeNil)

		noisy := append([]byte{0x00, 0xFF, 0x10, 0xAE}, good.Bytes()...)
		r := bufio.NewReader(bytes.NewReader(noisy))

		f, err := ReadFrame(r)
		So(err, ShouldBeNil)
		So(f.Command, ShouldEqual, Sensor)
		So(f.Payload, ShouldResemble, []byte{1, 2, 3})
	})
}

func TestReadFrameChecksumMismatch(t *testing.T) {
	Convey("a corrupted payload byte is caught by the checksum", t, func() {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		So(WriteFrame(w, PCCommand, []byte{5, 6, 7}), ShouldBeNil)

		raw := buf.Bytes()
		raw[4] ^= 0xFF // flip a payload byte, leaving the trailing checksum stale

		r := bufio.NewReader(bytes.NewReader(raw))
		_, err := ReadFrame(r)
		So(err, ShouldEqual, ErrChecksum)
	})
}

func TestReadFrameNoPacket(t *testing.T) {
	Convey("an empty or truncated stream yields ErrNoPacket", t, func() {
		r := bufio.NewReader(bytes.NewReader(nil))
		_, err := ReadFrame(r)
		So(err, ShouldEqual, ErrNoPacket)

		truncated := bufio.NewReader(bytes.NewReader([]byte{syncByte, byte(ID), 4, 1, 2}))
		_, err = ReadFrame(truncated)
		So(err, ShouldEqual, ErrNoPacket)
	})
}

func TestWriteFramePayloadTooLarge(t *testing.T) {
	Convey("a payload over MaxPayload is rejected before touching the writer", t, func() {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		err := WriteFrame(w, Sensor, make([]byte, MaxPayload+1))
		So(err, ShouldEqual, ErrPayloadTooLarge)
		So(buf.Len(), ShouldEqual, 0)
	})
}

func TestCommandString(t *testing.T) {
	Convey("known commands print their name, unknown ones print their hex value", t, func() {
		So(ID.String(), ShouldEqual, "ID")
		So(Error.String(), ShouldEqual, "ERROR")
		So(Command(0x99).String(), ShouldEqual, "Command(0x99)")
	})
}
