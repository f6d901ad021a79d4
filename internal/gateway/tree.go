package gateway

import (
	"fmt"
	"path"

	"github.com/aks-ide/gateway/internal/events"
)

// maxTreeDepth bounds the recursive directory walk.
const maxTreeDepth = 3

// File lists longer than fileListLimit are cut to fileListKeep entries
// plus a truncation marker.
const (
	fileListLimit = 15
	fileListKeep  = 10
)

// prunedDirs are never descended into or listed.
var prunedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"__pycache__":  true,
	".cache":       true,
}

// HandleRepoTree emits the user's current directory tree as a
// repo_structure event.
func (g *Gateway) HandleRepoTree(ch ClientChannel, email string) error {
	return ch.Emit(events.RepoStructure, g.buildTree(email))
}

// HandleCreateRepo creates a new project directory under /home, then
// echoes the requested name back and re-emits the tree.
func (g *Gateway) HandleCreateRepo(ch ClientChannel, email, projectName string) error {
	sanitized, err := g.createProject(email, projectName)
	if err != nil {
		g.log.Warnw("project creation failed", "email", email, "name", projectName, "error", err)
		_ = ch.Emit(events.TerminalError, fmt.Sprintf("Could not create project %q: %v", projectName, err))
		return err
	}
	g.log.Infow("project created", "email", email, "name", sanitized)

	// The client gets back the name it asked for, not the sanitized one.
	_ = ch.Emit(events.RepoCreated, projectName)
	return ch.Emit(events.RepoStructure, g.buildTree(email))
}

// buildTree walks the directory tree from the shell's working
// directory, treating "/" as /home so a fresh shell still lands on the
// projects root.
func (g *Gateway) buildTree(email string) map[string]any {
	cwd := g.getCwd(email)
	if cwd == "" || cwd == "/" {
		cwd = "/home"
	}
	return map[string]any{
		"current_directory": cwd,
		"structure":         g.walkDir(email, cwd, 0),
	}
}

// walkDir lists one directory and recurses into subdirectories while
// depth stays below maxTreeDepth, so the root and maxTreeDepth nested
// levels are listed; deeper directories appear as empty objects. Files
// go under the "_files" key mapped absolute path to basename; oversized
// listings are truncated with a marker entry.
func (g *Gateway) walkDir(email, dir string, depth int) map[string]any {
	structure := map[string]any{}

	var files []dirEntry
	for _, entry := range g.listDir(email, dir) {
		if prunedDirs[entry.Name] {
			continue
		}
		if entry.IsDir {
			if depth < maxTreeDepth {
				structure[entry.Name] = g.walkDir(email, path.Join(dir, entry.Name), depth+1)
			} else {
				structure[entry.Name] = map[string]any{}
			}
			continue
		}
		files = append(files, entry)
	}

	if len(files) > 0 {
		fileMap := map[string]string{}
		if len(files) > fileListLimit {
			for _, f := range files[:fileListKeep] {
				fileMap[path.Join(dir, f.Name)] = f.Name
			}
			fileMap["..."] = fmt.Sprintf("... and %d more files", len(files)-fileListKeep)
		} else {
			for _, f := range files {
				fileMap[path.Join(dir, f.Name)] = f.Name
			}
		}
		structure["_files"] = fileMap
	}

	return structure
}
