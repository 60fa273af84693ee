package main

import (
	"fmt"
	"strconv"
	"strings"
)

// command is a parsed slash command.
type command struct {
	name string
	args []string
}

// parseCommand splits "/name arg..." into a command. Text that does not start
// with a slash is a prompt, not a command.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}
	fields := strings.Fields(text)
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// turnArg converts the 1-based turn number in args[0] to a log index.
func turnArg(args []string, count int) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing turn number")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return 0, fmt.Errorf("invalid turn number %q", args[0])
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("no turn #%d", n)
	}
	return n - 1, nil
}

func helpText() string {
	return "Commands:\n" +
		"  /help              Show this help message\n" +
		"  /attach <path>     Attach an image to the next prompt\n" +
		"  /detach            Drop pending attachments\n" +
		"  /stop              Stop the current generation (also Esc)\n" +
		"  /regen <n>         Regenerate from turn #n\n" +
		"  /delete <n>        Delete turn #n\n" +
		"  /save <n> [dir]    Save the images of turn #n\n" +
		"  /clear             Clear the conversation\n" +
		"  /settings          Edit generation settings\n" +
		"  /key               Set or remove the API key\n" +
		"  /quit              Exit\n\n" +
		"Shortcuts:\n" +
		"  Enter              Submit\n" +
		"  Alt+Enter          New line\n" +
		"  PgUp/PgDn          Scroll\n" +
		"  Ctrl+C             Exit"
}
