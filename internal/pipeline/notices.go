package pipeline

import (
	"fmt"
	"strings"

	"github.com/mmynk/splitchat/internal/chatlog"
	"github.com/mmynk/splitchat/internal/models"
	"github.com/mmynk/splitchat/internal/storage"
)

const (
	welcomeText       = "Hi! Set the bill total and tell me who is splitting it."
	scanningText      = "Scanning the receipt for its total..."
	scanFailedText    = "I couldn't read the receipt clearly. Please enter the total manually."
	commandFailedText = "Sorry, I didn't catch that. Please say it again."
	disabledText      = "Chat commands and receipt scanning are unavailable because no API key is configured. You can still edit the total directly."
)

func receiptFoundText(total float64, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found a total of %.2f.", total)
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	b.WriteString(" Now tell me who had what so I can keep individual items out of the even split.")
	return b.String()
}

// InitialSnapshot is the state of a new session: an empty bill and a
// transcript holding only the welcome notice.
func InitialSnapshot() storage.Snapshot {
	return storage.Snapshot{
		Log: chatlog.New(chatlog.NewMessage(models.RoleNotice, welcomeText)),
	}
}
