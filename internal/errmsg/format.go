// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackStart  Op = "start playback"
	OpPlaybackPause  Op = "pause playback"
	OpPlaybackResume Op = "resume playback"
	OpPlaybackStop   Op = "stop playback"
	OpPlaybackSeek   Op = "seek"
	OpPlaybackNext   Op = "skip to next track"
	OpPlaybackPrev   Op = "skip to previous track"
	OpVolumeSet      Op = "set volume"

	// Library operations
	OpLibraryScan  Op = "scan library"
	OpLibraryLoad  Op = "load library"
	OpLibraryWatch Op = "watch library folders"

	// Queue operations
	OpQueueLoad Op = "load queue"
	OpQueueSave Op = "save queue"

	// Position operations
	OpPositionSave Op = "save playback position"
	OpPositionLoad Op = "load playback position"

	// Storage
	OpStoreOpen Op = "open database"

	// Integrations
	OpScrobble       Op = "scrobble track"
	OpNowPlaying     Op = "update now playing"
	OpNotify         Op = "send notification"
	OpMPRISExport    Op = "export mpris interface"
	OpLifecycleWatch Op = "watch session lifecycle"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
