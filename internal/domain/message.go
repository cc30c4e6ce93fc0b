package domain

import "time"

// VoiceClip is the audio attachment of an incoming message.
type VoiceClip struct {
	FileID   string
	Format   string
	URL      string
	Duration time.Duration
	Size     int64
}

// FileName is the name the clip is stored under in a workspace.
func (c VoiceClip) FileName() string {
	format := c.Format
	if format == "" {
		format = "ogg"
	}
	return c.FileID + "." + format
}

type VoiceMessage struct {
	ID           string
	Conversation string
	Sender       string
	Clip         VoiceClip
	ReceivedAt   time.Time
}

// Reply is the result of a generation request. HasText is false when the
// model answered without a textual payload (blocked, empty candidates, ...).
type Reply struct {
	Text    string
	HasText bool
}

func TextReply(text string) Reply {
	return Reply{Text: text, HasText: true}
}
