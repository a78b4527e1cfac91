package notifications

import (
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// StaticData is the part of the notification template data model set upon initialization.
type StaticData struct {
	Title string
	Host  string
}

// Data is the notification template data model.
//
// Change is nil for messages built from log entries alone.
type Data struct {
	StaticData
	Repo    string
	Change  *types.BranchChange
	State   types.RepoState
	Entries []*logrus.Entry
}

// Paths returns the changed paths of the reported branch.
func (d Data) Paths() []string {
	if d.Change == nil {
		return nil
	}

	return d.State.PathChanges[d.Change.Branch]
}
