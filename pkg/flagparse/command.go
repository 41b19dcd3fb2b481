package flagparse

import (
	"fmt"

	"github.com/chainsync/chainsync/pkg/util"
)

// Command defines the operation to execute.
type Command int

const (
	None = iota
	Full
	Sync
	Incremental
	Recover
	Init
	Version
)

var commandToString = map[Command]string{
	None:        "none",
	Full:        "full",
	Sync:        "sync",
	Incremental: "inc",
	Recover:     "recover",
	Init:        "init",
	Version:     "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'full', 'sync', 'inc', 'recover', 'init', or 'version'", s)
}
