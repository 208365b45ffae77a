package interactions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// InteractionType is the discriminator of an inbound interaction.
// See https://discord.com/developers/docs/interactions/receiving-and-responding
type InteractionType int

const (
	InteractionTypePing               InteractionType = 1
	InteractionTypeApplicationCommand InteractionType = 2
)

var (
	ErrUnknownInteractionType = errors.New("unknown interaction type")
	ErrMalformedInteraction   = errors.New("malformed interaction")
)

// Interaction is a verified, decoded interaction. The set of implementations
// is closed: every variant must provide its response mapping.
type Interaction interface {
	Type() InteractionType
	respond() Response
}

// Ping is the platform's endpoint liveness check.
type Ping struct{}

func (Ping) Type() InteractionType { return InteractionTypePing }

// CommandType identifies the kind of application command.
type CommandType int

const (
	CommandTypeChatInput         CommandType = 1
	CommandTypeUser              CommandType = 2
	CommandTypeMessage           CommandType = 3
	CommandTypePrimaryEntryPoint CommandType = 4
)

func (t *CommandType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("command type: %w", err)
	}
	if n < int(CommandTypeChatInput) || n > int(CommandTypePrimaryEntryPoint) {
		return fmt.Errorf("unknown command type %d", n)
	}
	*t = CommandType(n)
	return nil
}

// OptionType identifies the value kind of a command option.
type OptionType int

const (
	OptionTypeSubCommand      OptionType = 1
	OptionTypeSubCommandGroup OptionType = 2
	OptionTypeString          OptionType = 3
	OptionTypeInteger         OptionType = 4
	OptionTypeBoolean         OptionType = 5
	OptionTypeUser            OptionType = 6
	OptionTypeChannel         OptionType = 7
	OptionTypeRole            OptionType = 8
	OptionTypeMentionable     OptionType = 9
	OptionTypeNumber          OptionType = 10
	OptionTypeAttachment      OptionType = 11
)

func (t *OptionType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("option type: %w", err)
	}
	if n < int(OptionTypeSubCommand) || n > int(OptionTypeAttachment) {
		return fmt.Errorf("unknown option type %d", n)
	}
	*t = OptionType(n)
	return nil
}

// IsSubCommand reports whether the option groups nested options rather than
// carrying a value.
func (t OptionType) IsSubCommand() bool {
	return t == OptionTypeSubCommand || t == OptionTypeSubCommandGroup
}

// Option is one node of an application command's option tree.
type Option struct {
	Name    string     `json:"name"`
	Type    OptionType `json:"type"`
	Value   any        `json:"value,omitempty"`
	Options []Option   `json:"options,omitempty"`
}

func (o *Option) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	var opt Option
	if ok, err := requiredField(fields, "name", &opt.Name); err != nil {
		return fmt.Errorf("option name: %w", err)
	} else if !ok {
		return errors.New("option name is required")
	}
	if ok, err := requiredField(fields, "type", &opt.Type); err != nil {
		return fmt.Errorf("option %q: %w", opt.Name, err)
	} else if !ok {
		return fmt.Errorf("option %q: type is required", opt.Name)
	}
	if raw, ok := fields["value"]; ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&opt.Value); err != nil {
			return fmt.Errorf("option %q: value: %w", opt.Name, err)
		}
	}
	if raw, ok := fields["options"]; ok {
		if err := json.Unmarshal(raw, &opt.Options); err != nil {
			return fmt.Errorf("option %q: %w", opt.Name, err)
		}
	}

	*o = opt
	return nil
}

// ApplicationCommand is a slash, user or message command invocation.
type ApplicationCommand struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Command CommandType `json:"type"`
	Options []Option    `json:"options,omitempty"`
}

func (ApplicationCommand) Type() InteractionType { return InteractionTypeApplicationCommand }

func (c *ApplicationCommand) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	var cmd ApplicationCommand
	for _, f := range []struct {
		key string
		dst any
	}{
		{"id", &cmd.ID},
		{"name", &cmd.Name},
		{"type", &cmd.Command},
	} {
		ok, err := requiredField(fields, f.key, f.dst)
		if err != nil {
			return fmt.Errorf("command %s: %w", f.key, err)
		}
		if !ok {
			return fmt.Errorf("command %s is required", f.key)
		}
	}
	if raw, ok := fields["options"]; ok {
		if err := json.Unmarshal(raw, &cmd.Options); err != nil {
			return fmt.Errorf("command options: %w", err)
		}
	}

	*c = cmd
	return nil
}

// Path returns the command name followed by any selected sub-command group
// and sub-command names.
func (c ApplicationCommand) Path() []string {
	path := []string{c.Name}
	opts := c.Options
	for {
		var next *Option
		for i := range opts {
			if opts[i].Type.IsSubCommand() {
				next = &opts[i]
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next.Name)
		opts = next.Options
	}
}

// objectFields splits a JSON object into its members. Keys are matched
// exactly; encoding/json struct decoding would fold case.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("expected a JSON object")
	}
	return fields, nil
}

// requiredField decodes fields[key] into dst. A missing or null member
// reports false.
func requiredField(fields map[string]json.RawMessage, key string, dst any) (bool, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, err
	}
	return true, nil
}

// Decode parses a verified request body. The discriminator is read first and
// any value outside the known set is rejected rather than defaulted.
func Decode(body []byte) (Interaction, error) {
	fields, err := objectFields(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInteraction, err)
	}
	var typ int
	if ok, err := requiredField(fields, "type", &typ); err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrMalformedInteraction, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: type is required", ErrMalformedInteraction)
	}

	switch InteractionType(typ) {
	case InteractionTypePing:
		return Ping{}, nil
	case InteractionTypeApplicationCommand:
		data, ok := fields["data"]
		if !ok || bytes.Equal(data, []byte("null")) {
			return nil, fmt.Errorf("%w: application command data is required", ErrMalformedInteraction)
		}
		var cmd ApplicationCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInteraction, err)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownInteractionType, typ)
	}
}
