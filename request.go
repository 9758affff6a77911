package xconn

// Request is a single encoded protocol request. Bytes must return the
// complete frame, header and padding included.
type Request interface {
	Bytes() ([]byte, error)
}

// ReplyRequest is a Request the server answers with a reply. DecodeReply
// is kept with the pending cookie and run by the read loop when the reply
// arrives, since a reply does not describe its own layout.
type ReplyRequest interface {
	Request
	DecodeReply(buf []byte) (interface{}, error)
}

// RawRequest is a ready-made frame for a request without a reply.
type RawRequest []byte

func (r RawRequest) Bytes() ([]byte, error) { return r, nil }

// syncRequest is GetInputFocus, the cheapest request that has a reply.
// Its reply proves the server has handled everything sent before it.
type syncRequest struct{}

func (syncRequest) Bytes() ([]byte, error) {
	return []byte{43, 0, 1, 0}, nil
}

func (syncRequest) DecodeReply(buf []byte) (interface{}, error) {
	return nil, nil
}
