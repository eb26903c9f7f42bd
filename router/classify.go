package router

import (
	"path/filepath"
	"strings"

	"github.com/tinker495/associate/events"
)

// Route is the event a changed path maps to.
type Route struct {
	Topic   string
	Payload any
}

// Classify maps a changed path to its topic by the named root it sits under,
// judged from the first path element below home. Paths outside home, or under
// no named root, have no route.
func Classify(home, path string) (Route, bool) {
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return Route{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return Route{}, false
	}

	switch parts[0] {
	case "teams":
		for _, p := range parts[1:] {
			if p == "inboxes" {
				return Route{Topic: events.InboxChanged, Payload: path}, true
			}
		}
		return Route{Topic: events.TeamChanged, Payload: path}, true

	case "tasks":
		return Route{Topic: events.TaskChanged, Payload: path}, true

	case "projects":
		return classifyProject(parts[1:], path)

	case "todos":
		return Route{Topic: events.TodosChanged, Payload: path}, true

	case "plans":
		return Route{Topic: events.PlansChanged, Payload: path}, true

	case "notes":
		return Route{Topic: events.NotesChanged, Payload: events.ProjectPathPayload{Path: path}}, true
	}
	return Route{}, false
}

// classifyProject handles paths below projects/; parts starts at the project
// directory name.
func classifyProject(parts []string, path string) (Route, bool) {
	if len(parts) < 2 {
		return Route{}, false
	}
	project := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "sessions-index.json":
		return Route{
			Topic:   events.SessionChanged,
			Payload: events.ProjectPathPayload{ProjectID: project, Path: path},
		}, true
	case parts[1] == "notes":
		return Route{
			Topic:   events.NotesChanged,
			Payload: events.ProjectPathPayload{ProjectID: project, Path: path},
		}, true
	case strings.HasSuffix(parts[len(parts)-1], ".jsonl"):
		return Route{Topic: events.TranscriptUpdated, Payload: path}, true
	}
	return Route{}, false
}
