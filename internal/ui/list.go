package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/d2t/internal/models"
)

var _ list.Item = folderItem{}

// folderItem wraps [models.Folder] to implement [list.Item].
type folderItem struct {
	folder models.Folder
}

func (i folderItem) FilterValue() string { return i.folder.Name }
func (i folderItem) Title() string       { return i.folder.Name }
func (i folderItem) Description() string {
	return fmt.Sprintf("folder %d • %d releases", i.folder.ID, i.folder.Count)
}
