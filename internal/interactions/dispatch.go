package interactions

import "strings"

// ResponseType is the callback type of an interaction response.
type ResponseType int

const (
	ResponseTypePong                     ResponseType = 1
	ResponseTypeChannelMessageWithSource ResponseType = 4
)

// Response is the payload returned to the platform for an interaction.
type Response struct {
	Type ResponseType `json:"type"`
	Data *MessageData `json:"data,omitempty"`
}

// MessageData is the message body of a channel message response.
type MessageData struct {
	Content string `json:"content"`
}

// Dispatch maps an interaction to its response. It performs no I/O.
func Dispatch(in Interaction) Response {
	return in.respond()
}

func (Ping) respond() Response {
	return Response{Type: ResponseTypePong}
}

func (c ApplicationCommand) respond() Response {
	return Response{
		Type: ResponseTypeChannelMessageWithSource,
		Data: &MessageData{
			Content: "Hi there from the bot! You used /" + strings.Join(c.Path(), " "),
		},
	}
}
