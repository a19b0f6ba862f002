// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one sync:
//  1. [FolderListView] : Browse and select a Discogs collection folder
//  2. [ConfirmView] : Choose sync or style-sync, then preview (dry run) or apply
//  3. [SyncView] : Follow progress updates from the sync engine
//  4. [ResultView] : Summary, per-playlist outcomes and unmatched tracks; a preview can be applied from here
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the tasks.SyncEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/p/m, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
