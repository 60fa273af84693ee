package webbridge

import (
	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// Frame types sent to the client.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Command types accepted from the client.
const (
	CmdSend       = "send"
	CmdStop       = "stop"
	CmdDelete     = "delete"
	CmdRegenerate = "regenerate"
	CmdClear      = "clear"
	CmdSettings   = "settings"
	CmdAPIKey     = "api_key"
)

// Frame is a server-to-client message.
type Frame struct {
	Type     string             `json:"type"`
	Session  string             `json:"session,omitempty"`
	Turns    []TurnView         `json:"turns,omitempty"`
	Loading  bool               `json:"loading"`
	HasKey   bool               `json:"has_key"`
	Settings *settings.Settings `json:"settings,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// TurnView is the wire shape of a logged turn.
type TurnView struct {
	ID               string     `json:"id"`
	Role             string     `json:"role"`
	Parts            []PartView `json:"parts"`
	Error            bool       `json:"error,omitempty"`
	ReasoningSeconds float64    `json:"reasoning_seconds,omitempty"`
}

// PartView is the wire shape of a content part.
type PartView struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
	Thought  bool   `json:"thought,omitempty"`
}

// Command is a client-to-server message. Which fields matter depends on Type.
type Command struct {
	Type        string             `json:"type"`
	Text        string             `json:"text,omitempty"`
	Attachments []Attachment       `json:"attachments,omitempty"`
	ID          string             `json:"id,omitempty"`
	Key         string             `json:"key,omitempty"`
	Settings    *settings.Settings `json:"settings,omitempty"`
}

// Attachment is an inline file sent with a send command.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

func viewTurns(turns []turn.Turn) []TurnView {
	out := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		v := TurnView{
			ID:               t.ID,
			Role:             t.Role.String(),
			Parts:            make([]PartView, 0, len(t.Parts)),
			Error:            t.Err,
			ReasoningSeconds: t.ReasoningSeconds(),
		}
		for _, p := range t.Parts {
			switch pt := p.(type) {
			case content.Text:
				v.Parts = append(v.Parts, PartView{Kind: pt.PartKind(), Text: pt.Text, Thought: pt.Thought})
			case content.Inline:
				v.Parts = append(v.Parts, PartView{Kind: pt.PartKind(), MimeType: pt.MediaType, Data: pt.Data, Thought: pt.Thought})
			}
		}
		out = append(out, v)
	}
	return out
}

// inlines converts and validates command attachments.
func inlines(atts []Attachment) ([]content.Inline, error) {
	out := make([]content.Inline, 0, len(atts))
	for _, a := range atts {
		in := content.Inline{MediaType: a.MimeType, Data: a.Data}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}
