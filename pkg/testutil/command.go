package testutil

import "time"

// Command records a frame the plugin sent to the host
type Command struct {
	Timestamp time.Time
	Event     string
	Context   string
	Payload   map[string]any
}

// FilterCommands filters commands by event and button context
func FilterCommands(commands []Command, event, context string) []Command {
	var filtered []Command
	for _, cmd := range commands {
		if cmd.Event == event && cmd.Context == context {
			filtered = append(filtered, cmd)
		}
	}
	return filtered
}

// FindCommand finds the most recent command for a button
func FindCommand(commands []Command, event, context string) *Command {
	for i := len(commands) - 1; i >= 0; i-- {
		if commands[i].Event == event && commands[i].Context == context {
			cmd := commands[i]
			return &cmd
		}
	}
	return nil
}

// FindTitle finds the most recent setTitle for a button with the given title
func FindTitle(commands []Command, context, title string) *Command {
	for i := len(commands) - 1; i >= 0; i-- {
		cmd := commands[i]
		if cmd.Event == "setTitle" && cmd.Context == context && cmd.Payload["title"] == title {
			return &cmd
		}
	}
	return nil
}
