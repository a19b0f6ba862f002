package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgFoldersFetched MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type foldersFetched struct {
	folders []models.Folder
	err     error
}

type syncComplete struct {
	report *models.SyncReport
	err    error
}

// foldersFetchedMsg is the constructor for [MsgFoldersFetched]
func foldersFetchedMsg(folders []models.Folder, err error) Msg {
	return Msg{kind: MsgFoldersFetched, data: foldersFetched{folders, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(report *models.SyncReport, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{report, err}}
}
