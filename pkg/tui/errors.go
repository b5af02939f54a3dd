package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoDownloader is returned when a download is requested but the runner
	// was built without a Downloader.
	ErrNoDownloader = errors.New("tui: downloads not configured")
)
