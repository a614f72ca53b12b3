package chat

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Alert is a transient new-message banner. It clears itself after the
// configured duration.
type Alert struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

func newAlert(count int) Alert {
	msg := fmt.Sprintf("%d new messages", count)
	if count == 1 {
		msg = "1 new message"
	}
	return Alert{Count: count, Message: msg}
}

// Notifier raises out-of-app cues for new messages. Both calls are
// best-effort; an unsupported desktop environment must not break sync.
type Notifier interface {
	Notify(title, message string) error
	Beep() error
}

// SystemNotifier uses the OS notification facility and the system beeper.
type SystemNotifier struct{}

func (SystemNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

func (SystemNotifier) Beep() error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}
