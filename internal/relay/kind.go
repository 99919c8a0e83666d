package relay

import "github.com/mymmrac/telego"

// Kind is the single payload carried by a message, decided once at parse time.
type Kind string

const (
	KindText        Kind = "text"
	KindPhoto       Kind = "photo"
	KindVideo       Kind = "video"
	KindDocument    Kind = "document"
	KindVoice       Kind = "voice"
	KindSticker     Kind = "sticker"
	KindContact     Kind = "contact"
	KindUnsupported Kind = "unsupported"
)

// Payload is the classified content of a message.
type Payload struct {
	Kind    Kind
	Text    string
	FileID  string
	Caption string
	Contact *telego.Contact
}

// ClassifyPayload maps a message onto exactly one Kind. When the platform
// sets several fields the first match in Kind declaration order wins.
func ClassifyPayload(msg *telego.Message) Payload {
	if msg == nil {
		return Payload{Kind: KindUnsupported}
	}
	p := Payload{Caption: msg.Caption}
	switch {
	case msg.Text != "":
		p.Kind = KindText
		p.Text = msg.Text
	case len(msg.Photo) > 0:
		p.Kind = KindPhoto
		// sizes are ordered smallest to largest
		p.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		p.Kind = KindVideo
		p.FileID = msg.Video.FileID
	case msg.Document != nil:
		p.Kind = KindDocument
		p.FileID = msg.Document.FileID
	case msg.Voice != nil:
		p.Kind = KindVoice
		p.FileID = msg.Voice.FileID
	case msg.Sticker != nil:
		p.Kind = KindSticker
		p.FileID = msg.Sticker.FileID
	case msg.Contact != nil:
		p.Kind = KindContact
		p.Contact = msg.Contact
	default:
		p.Kind = KindUnsupported
	}
	return p
}
