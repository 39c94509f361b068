package router

import (
	"fmt"
	"strings"
)

// CommandCategory represents a logical grouping of commands.
type CommandCategory int

const (
	CategoryAssistant CommandCategory = iota // Commands answered by the generative model
	CategoryUtility                          // Local commands
	CategorySystem                           // Administration
)

// String returns the category name.
func (c CommandCategory) String() string {
	names := []string{"Assistant", "Utility", "System"}
	if int(c) >= 0 && int(c) < len(names) {
		return names[c]
	}
	return "Unknown"
}

// CommandInfo holds metadata about a command.
type CommandInfo struct {
	Name        string          // Primary command name (e.g., "/help")
	Aliases     []string        // Alternative names (e.g., ["/h", "/?"])
	Description string          // Short description
	Usage       string          // Example usage
	Category    CommandCategory // Which category this belongs to
	ShowInHelp  bool            // Whether to show in /help output
}

// CommandRegistry holds all registered commands with their metadata.
// Order is the order /help lists them in.
var CommandRegistry = []CommandInfo{
	{
		Name:        "/ask",
		Description: "Ask the assistant a question",
		Usage:       "/ask <question>",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/summary",
		Description: "Summarize the recent conversation",
		Usage:       "/summary",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/optimize",
		Description: "Rewrite text (or your last message) to be clearer",
		Usage:       "/optimize [text]",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/weather",
		Description: "Weather briefing for a location",
		Usage:       "/weather [location]",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/crypto",
		Description: "Overview of a crypto asset",
		Usage:       "/crypto [symbol]",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/speak",
		Aliases:     []string{"/say"},
		Description: "Read text aloud",
		Usage:       "/speak <text>",
		Category:    CategoryAssistant,
		ShowInHelp:  true,
	},
	{
		Name:        "/remindme",
		Aliases:     []string{"/remind"},
		Description: "Post a reminder into this chat later",
		Usage:       `/remindme <N><m|h> "<message>"`,
		Category:    CategoryUtility,
		ShowInHelp:  true,
	},
	{
		Name:        "/archive",
		Description: "Seal the conversation into the archive (asks first)",
		Usage:       "/archive",
		Category:    CategoryUtility,
		ShowInHelp:  true,
	},
	{
		Name:        "/tokenlist",
		Aliases:     []string{"/tokens"},
		Description: "List phrases sent as compact tokens",
		Usage:       "/tokenlist",
		Category:    CategoryUtility,
		ShowInHelp:  true,
	},
	{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and command reference",
		Usage:       "/help [command]",
		Category:    CategoryUtility,
		ShowInHelp:  true,
	},
	{
		Name:        "/admin",
		Description: "Session status (admins only)",
		Usage:       "/admin",
		Category:    CategorySystem,
		ShowInHelp:  false,
	},
}

// FindCommand looks up a command by name or alias. Matching is case-insensitive.
func FindCommand(name string) *CommandInfo {
	name = strings.ToLower(name)
	for i := range CommandRegistry {
		cmd := &CommandRegistry[i]
		if cmd.Name == name {
			return cmd
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}

// splitCommand returns the verb and the remaining argument text.
func splitCommand(s string) (verb, args string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	verb = fields[0]
	args = strings.TrimSpace(strings.TrimPrefix(s, verb))
	return verb, args
}

// renderHelp lists every command shown in help, grouped by category.
func renderHelp() string {
	var b strings.Builder
	b.WriteString("**Commands**\n")
	current := CommandCategory(-1)
	for _, cmd := range CommandRegistry {
		if !cmd.ShowInHelp {
			continue
		}
		if cmd.Category != current {
			current = cmd.Category
			fmt.Fprintf(&b, "\n_%s_\n", current)
		}
		fmt.Fprintf(&b, "- `%s` %s\n", cmd.Usage, cmd.Description)
	}
	b.WriteString("\nExact stock phrases (see /tokenlist) are sent as compact tokens.")
	return b.String()
}

// renderCommandHelp describes a single command.
func renderCommandHelp(cmd *CommandInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` %s", cmd.Usage, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&b, "\nAliases: %s", strings.Join(cmd.Aliases, ", "))
	}
	return b.String()
}
