package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpWidth = 60

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	sectionStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	flagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// wrapText wraps text to the specified width, preserving existing line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = helpWidth
	}

	var result []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			result = append(result, paragraph)
			continue
		}

		var line string
		for _, word := range strings.Fields(paragraph) {
			if line == "" {
				line = word
			} else if len(line)+1+len(word) <= width {
				line += " " + word
			} else {
				result = append(result, line)
				line = word
			}
		}
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// SetStyledHelp applies consistent styling to a command's help output.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive applies styled help to a command and all its
// subcommands. Call it after all subcommands have been added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// parseDescription splits a command's long description into main text and examples.
func parseDescription(long string) (description string, examples string) {
	markers := []string{"\nExamples:\n", "\nExample:\n"}
	for _, marker := range markers {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

// renderExamples styles example lines with muted comments and styled commands.
func renderExamples(w io.Writer, examples string, cmdPath string) {
	rootCmd := strings.Split(cmdPath, " ")[0]

	for _, line := range strings.Split(examples, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			fmt.Fprintln(w)
		case strings.HasPrefix(trimmed, "#"):
			fmt.Fprintln(w, " "+mutedStyle.Render(trimmed))
		default:
			fmt.Fprintln(w, " "+styleCommandLine(trimmed, rootCmd))
		}
	}
}

// styleCommandLine applies styling to different parts of a command example.
func styleCommandLine(line, rootCmd string) string {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return line
	}

	result := make([]string, 0, len(parts))
	for i, part := range parts {
		switch {
		case i == 0 && part == rootCmd:
			result = append(result, nameStyle.Render(part))
		case i == 1 && !strings.HasPrefix(part, "-"):
			result = append(result, subStyle.Render(part))
		case strings.HasPrefix(part, "-"):
			result = append(result, flagStyle.Render(part))
		default:
			result = append(result, part)
		}
	}
	return "  " + strings.Join(result, " ")
}

func styledHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	width := helpWidth - 2

	fmt.Fprintln(w, " "+titleStyle.Render(strings.ToUpper(cmd.CommandPath())))

	var description, examples string
	if cmd.Long != "" {
		description, examples = parseDescription(cmd.Long)
	} else {
		description = cmd.Short
	}

	if cmd.Short != "" {
		for _, line := range strings.Split(wrapText(cmd.Short, width), "\n") {
			fmt.Fprintln(w, " "+line)
		}
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(w)
		for _, line := range strings.Split(wrapText(description, width), "\n") {
			fmt.Fprintln(w, " "+line)
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		fmt.Fprintln(w, "\n "+sectionStyle.Render("USAGE"))
		if cmd.Runnable() {
			fmt.Fprintf(w, " %s\n", cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			fmt.Fprintf(w, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		maxLen := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() && len(sub.Name()) > maxLen {
				maxLen = len(sub.Name())
			}
		}

		fmt.Fprintln(w, "\n "+sectionStyle.Render("COMMANDS"))
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				padding := strings.Repeat(" ", maxLen-len(sub.Name()))
				fmt.Fprintf(w, " %s%s  %s\n", nameStyle.Render(sub.Name()), padding, sub.Short)
			}
		}
	}

	var visibleFlags []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visibleFlags = append(visibleFlags, f)
		}
	})

	if len(visibleFlags) > 0 {
		fmt.Fprintln(w, "\n "+sectionStyle.Render("FLAGS"))
		maxFlagLen := 0
		for _, f := range visibleFlags {
			if l := len(formatFlagName(f)); l > maxFlagLen {
				maxFlagLen = l
			}
		}
		for _, f := range visibleFlags {
			flagStr := formatFlagName(f)
			padding := strings.Repeat(" ", maxFlagLen-len(flagStr))
			usage := f.Usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
				usage += mutedStyle.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
			}
			fmt.Fprintf(w, " %s%s  %s\n", flagStyle.Render(flagStr), padding, usage)
		}
	}

	exampleText := cmd.Example
	if exampleText == "" {
		exampleText = examples
	}
	if exampleText != "" {
		fmt.Fprintln(w, "\n "+sectionStyle.Render("EXAMPLES"))
		renderExamples(w, exampleText, cmd.CommandPath())
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

// formatFlagName returns a formatted flag string like "-f, --flag" or "--flag".
func formatFlagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return fmt.Sprintf("    --%s", f.Name)
}
