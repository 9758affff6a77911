package xproto

import "github.com/xgbproject/xconn"

func bytesString(str string) []byte {
	return xconn.PadBytes([]byte(str))
}

func bytesUInt32List(list []uint32) []byte {
	buf := make([]byte, len(list)*4)
	for i, item := range list {
		xconn.Put32(buf[i*4:], item)
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// header writes the opcode, the data byte and the request length in
// 4 byte units at the start of buf.
func header(buf []byte, opcode, data byte) {
	buf[0] = opcode
	buf[1] = data
	xconn.Put16(buf[2:], uint16(len(buf)/4))
}

// ClientMessageData holds the data from a client message,
// duplicated in three forms because Go doesn't have unions.
type ClientMessageData struct {
	Data8  [20]byte
	Data16 [10]uint16
	Data32 [5]uint32
}

func getClientMessageData(b []byte, v *ClientMessageData) int {
	copy(v.Data8[:], b)
	for i := 0; i < 10; i++ {
		v.Data16[i] = xconn.Get16(b[i*2:])
	}
	for i := 0; i < 5; i++ {
		v.Data32[i] = xconn.Get32(b[i*4:])
	}
	return 20
}
