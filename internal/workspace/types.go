package workspace

import "time"

// Layout lists the directories Init creates under the project root.
var Layout = []string{"src", "tests", "docs"}

// Config configures a Workspace.
type Config struct {
	Root        string // Project root; created if missing
	Git         bool   // Initialise and use a git repository at Root
	AuthorName  string // Commit author (default "dweebuild")
	AuthorEmail string // Commit email (default "dweebuild@localhost")
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Debounce time.Duration // Quiet period before a change is reported (default 300ms)
	Ignore   []string      // Directory names never watched (default .git, .dweebuild, __pycache__, node_modules)
}
