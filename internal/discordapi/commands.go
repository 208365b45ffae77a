package discordapi

import "github.com/michaelhelvey/crabbot/internal/interactions"

// Installation and interaction context values for command registration.
const (
	IntegrationGuildInstall = 0
	IntegrationUserInstall  = 1

	ContextGuild          = 0
	ContextBotDM          = 1
	ContextPrivateChannel = 2
)

// Command is an application command definition.
type Command struct {
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	Type             interactions.CommandType `json:"type"`
	IntegrationTypes []int                    `json:"integration_types,omitempty"`
	Contexts         []int                    `json:"contexts,omitempty"`
}

// RegisteredCommand is a command as returned by the API. Type is left
// unchecked so command kinds added by the platform still decode.
type RegisteredCommand struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Type          int    `json:"type"`
}

// DefaultCommands is the command list the bot installs.
func DefaultCommands() []Command {
	return []Command{
		{
			Name:             "test",
			Description:      "Basic command to test the application functionality",
			Type:             interactions.CommandTypeChatInput,
			IntegrationTypes: []int{IntegrationGuildInstall, IntegrationUserInstall},
			Contexts:         []int{ContextGuild, ContextBotDM, ContextPrivateChannel},
		},
	}
}
