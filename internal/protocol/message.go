package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the Jupyter messaging protocol version spoken here.
const Version = "5.3"

// delimiter separates routing identities from the signed message body.
var delimiter = []byte("<IDS|MSG>")

// ErrBadSignature indicates a message failed HMAC verification.
// Such messages are dropped, not answered.
var ErrBadSignature = errors.New("message signature verification failed")

var emptyDict = json.RawMessage("{}")

// Header is the Jupyter message header.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// NewHeader builds a header for an outgoing message.
func NewHeader(session, msgType string) Header {
	return Header{
		MsgID:    uuid.NewString(),
		Session:  session,
		Username: "kernel",
		Date:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		MsgType:  msgType,
		Version:  Version,
	}
}

// Message is one Jupyter wire message. Identities are the ZeroMQ
// routing prefixes and are carried back verbatim on replies.
type Message struct {
	Identities [][]byte
	Header     Header
	Parent     json.RawMessage
	Metadata   json.RawMessage
	Content    json.RawMessage
	Buffers    [][]byte
}

// NewMessage builds an outgoing message with the given content, bound to
// parent (the raw header of the request being answered, nil for
// spontaneous messages).
func NewMessage(session, msgType string, parent json.RawMessage, content any) (*Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", msgType, err)
	}
	if parent == nil {
		parent = emptyDict
	}
	return &Message{
		Header:   NewHeader(session, msgType),
		Parent:   parent,
		Metadata: emptyDict,
		Content:  raw,
	}, nil
}

// RawHeader returns the marshaled header, as needed for parenting
// responses to this message.
func (m *Message) RawHeader() json.RawMessage {
	raw, err := json.Marshal(m.Header)
	if err != nil {
		return emptyDict
	}
	return raw
}

// Parse decodes wire frames into a Message, verifying the signature.
func Parse(frames [][]byte, signer *Signer) (*Message, error) {
	split := -1
	for i, f := range frames {
		if string(f) == string(delimiter) {
			split = i
			break
		}
	}
	if split < 0 || len(frames) < split+6 {
		return nil, fmt.Errorf("malformed message: %d frames, no delimiter", len(frames))
	}

	sig := frames[split+1]
	header, parent, metadata, content := frames[split+2], frames[split+3], frames[split+4], frames[split+5]
	if !signer.Verify(sig, header, parent, metadata, content) {
		return nil, ErrBadSignature
	}

	m := &Message{
		Identities: frames[:split],
		Parent:     parent,
		Metadata:   metadata,
		Content:    content,
		Buffers:    frames[split+6:],
	}
	if err := json.Unmarshal(header, &m.Header); err != nil {
		return nil, fmt.Errorf("parse message header: %w", err)
	}
	return m, nil
}

// Frames serializes the message for the wire, signing it.
func (m *Message) Frames(signer *Signer) ([][]byte, error) {
	header, err := json.Marshal(m.Header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	parent := m.Parent
	if parent == nil {
		parent = emptyDict
	}
	metadata := m.Metadata
	if metadata == nil {
		metadata = emptyDict
	}
	content := m.Content
	if content == nil {
		content = emptyDict
	}

	frames := make([][]byte, 0, len(m.Identities)+6+len(m.Buffers))
	frames = append(frames, m.Identities...)
	frames = append(frames, delimiter)
	frames = append(frames, []byte(signer.Sign(header, parent, metadata, content)))
	frames = append(frames, header, parent, metadata, content)
	frames = append(frames, m.Buffers...)
	return frames, nil
}

// Signer computes and checks message signatures. An empty key disables
// signing entirely, per the protocol.
type Signer struct {
	key []byte
}

// NewSigner creates a signer for the connection file's key.
func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign returns the hex HMAC-SHA256 over the given segments, or the
// empty string when signing is disabled.
func (s *Signer) Sign(segments ...[]byte) string {
	if len(s.key) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, s.key)
	for _, seg := range segments {
		mac.Write(seg)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex signature over the given segments.
func (s *Signer) Verify(sig []byte, segments ...[]byte) bool {
	if len(s.key) == 0 {
		return true
	}
	want := s.Sign(segments...)
	return hmac.Equal(sig, []byte(want))
}
