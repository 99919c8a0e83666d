package relay

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

const noUsername = "No username"

var (
	bannerRule = strings.Repeat("─", 30)

	// The emoji form is what Banner renders; the bare form still matches
	// banners whose emoji were dropped by a client. Both must fill their own
	// line so a display name on the line above cannot pose as the ID.
	bannerIDPattern = regexp.MustCompile(`(?m)^🆔 ID: (\d+)$`)
	bareIDPattern   = regexp.MustCompile(`(?m)^ID: (\d+)$`)
)

// Sender is the identity fields of a message author.
type Sender struct {
	ID       int64
	FullName string
	Username string
}

// SenderFromMessage resolves display name and handle, applying the defaults
// used in the banner.
func SenderFromMessage(msg *telego.Message) Sender {
	if msg == nil || msg.From == nil {
		return Sender{Username: noUsername}
	}
	username := msg.From.Username
	if username == "" {
		username = noUsername
	}
	return Sender{
		ID:       msg.From.ID,
		FullName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		Username: username,
	}
}

// Banner renders the Identification Banner prefixed to everything forwarded
// to the operator. It always contains "ID: <digits>".
func Banner(s Sender) string {
	return fmt.Sprintf("👤 From: %s\n🆔 ID: %d\n👨‍💼 Username: @%s\n%s\n", s.FullName, s.ID, s.Username, bannerRule)
}

// ExtractSenderID recovers the numeric sender ID from a banner embedded in
// text or a caption.
func ExtractSenderID(text string) (int64, bool) {
	match := bannerIDPattern.FindStringSubmatch(text)
	if match == nil {
		match = bareIDPattern.FindStringSubmatch(text)
	}
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
