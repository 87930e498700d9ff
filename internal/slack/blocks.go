// ABOUTME: Block Kit types and the formatter that renders assistant replies as blocks
// ABOUTME: Text becomes mrkdwn sections, options become buttons, images become image blocks

package slack

import (
	"encoding/json"

	"github.com/2389/assistant-relay/internal/assistant"
	"github.com/2389/assistant-relay/internal/event"
)

// Block is one Block Kit layout block.
type Block struct {
	Type     string      `json:"type"`
	Text     *TextObject `json:"text,omitempty"`
	Elements []Element   `json:"elements,omitempty"`
	Title    *TextObject `json:"title,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	AltText  string      `json:"alt_text,omitempty"`
}

// TextObject is a Block Kit text composition object.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Element is an interactive element inside an actions block.
type Element struct {
	Type  string      `json:"type"`
	Text  *TextObject `json:"text,omitempty"`
	Value string      `json:"value,omitempty"`
}

// Section returns a mrkdwn section block with text as-is.
func Section(text string) Block {
	return Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: text},
	}
}

// FormatText renders a plain notice.
func FormatText(text string) []Block {
	return []Block{Section(text)}
}

// FormatReply renders an assistant reply. Button values point back at ev
// so a click continues the same thread.
func FormatReply(reply *assistant.Reply, ev *event.ChatEvent) []Block {
	var blocks []Block
	for _, g := range reply.Output.Generic {
		switch g.ResponseType {
		case "text":
			blocks = append(blocks, Section(ToMrkdwn(g.Text)))
		case "option":
			blocks = append(blocks, optionBlock(g, ev))
		case "image":
			blocks = append(blocks, imageBlock(g))
		}
	}
	return blocks
}

func optionBlock(g assistant.Generic, ev *event.ChatEvent) Block {
	block := Block{Type: "actions"}
	for _, opt := range g.Options {
		block.Elements = append(block.Elements, Element{
			Type:  "button",
			Text:  &TextObject{Type: "plain_text", Text: opt.Label},
			Value: EncodeActionValue(opt.Value.Input.Text, ev.ThreadKey, ev.Type),
		})
	}
	return block
}

func imageBlock(g assistant.Generic) Block {
	alt := g.Description
	if alt == "" {
		alt = g.Title
	}
	if alt == "" {
		alt = "image"
	}
	block := Block{
		Type:     "image",
		ImageURL: g.Source,
		AltText:  alt,
	}
	if g.Title != "" {
		block.Title = &TextObject{Type: "plain_text", Text: g.Title}
	}
	return block
}

// StripInteractive drops actions and image blocks, keeping everything else
// byte-for-byte.
func StripInteractive(blocks []json.RawMessage) []json.RawMessage {
	kept := make([]json.RawMessage, 0, len(blocks))
	for _, raw := range blocks {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		if head.Type == "actions" || head.Type == "image" {
			continue
		}
		kept = append(kept, raw)
	}
	return kept
}

// WithNotice appends a mrkdwn notice to blocks.
func WithNotice(blocks []json.RawMessage, notice string) []json.RawMessage {
	data, _ := json.Marshal(Section(notice))
	out := make([]json.RawMessage, 0, len(blocks)+1)
	out = append(out, blocks...)
	return append(out, data)
}
