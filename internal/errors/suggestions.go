package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// PortExhaustedError generates suggestions when no port in the retry range
// could be bound.
func PortExhaustedError(basePort, attempts int) []ErrorSuggestion {
	last := basePort + attempts - 1
	return []ErrorSuggestion{
		{
			Title:       "Ports in use",
			Description: fmt.Sprintf("Ports %d-%d are all bound by other processes", basePort, last),
			Command:     fmt.Sprintf("lsof -i :%d", basePort),
		},
		{
			Title:       "Use a different base port",
			Description: "Start the server from a port outside the occupied range",
			Command:     fmt.Sprintf("devloop serve --port %d", last+1),
		},
		{
			Title:       "Widen the retry range",
			Description: "Allow more sequential ports to be tried",
			Example:     "server:\n  max_port_attempts: 50",
		},
	}
}

// BuildStartError generates suggestions when the build command cannot be
// executed at all.
func BuildStartError(command string, err error) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check the build command",
			Description: fmt.Sprintf("%q could not be started", command),
			Example:     "build:\n  command: ./gradlew",
		},
	}

	errStr := err.Error()
	if strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such file") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Run from the project root",
			Description: "The build wrapper is looked up relative to the working directory",
			Command:     "ls -la " + command,
		})
	}
	if strings.Contains(errStr, "permission denied") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Make the command executable",
			Description: "The build wrapper lacks the executable bit",
			Command:     "chmod +x " + command,
		})
	}

	return suggestions
}

// WatcherError generates suggestions when the file watcher died.
func WatcherError(err error) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Restart the server",
			Description: "File changes are no longer observed; a restart re-registers every directory",
		},
	}

	errStr := err.Error()
	if strings.Contains(errStr, "too many open files") || strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "queue or buffer overflow") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Raise the inotify limits",
			Description: "The watcher ran out of watch descriptors or its event queue overflowed",
			Command:     "sudo sysctl fs.inotify.max_user_watches=524288",
		})
	}

	return suggestions
}

// ConfigurationError generates suggestions for configuration issues
func ConfigurationError(configError string, configPath string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check configuration file",
			Description: "Verify your .devloop.yml file exists and has valid syntax",
			Command:     "cat " + configPath,
		},
		{
			Title:       "Validate configuration",
			Description: "Use the config validate command to check for issues",
			Command:     "devloop config validate",
		},
	}

	if strings.Contains(configError, "yaml") || strings.Contains(configError, "unmarshal") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix YAML syntax",
			Description: "There's a syntax error in your YAML configuration",
			Example:     "Use proper indentation and avoid tabs",
		})
	}

	return suggestions
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	title := e.Title
	if e.OriginalError != nil {
		title = fmt.Sprintf("%s: %v", e.Title, e.OriginalError)
	}

	return FormatSuggestions(title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}

// Enhance attaches operator-facing suggestions to the fatal errors of the dev
// loop. Errors it does not recognise are returned unchanged.
func Enhance(err error, basePort, attempts int, buildCommand string) error {
	var de *DevError
	if err == nil || !As(err, &de) {
		return err
	}

	switch de.Code {
	case CodeNoPort:
		return NewEnhancedError("Failed to start server", err, PortExhaustedError(basePort, attempts))
	case CodeBuildStart:
		return NewEnhancedError("Failed to run build command", err, BuildStartError(buildCommand, err))
	case CodeWatcherRead, CodeWatcherAdd:
		return NewEnhancedError("File watcher stopped", err, WatcherError(err))
	default:
		return err
	}
}
