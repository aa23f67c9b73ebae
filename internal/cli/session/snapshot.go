package session

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/orgpulse/orgpulse/internal/cli/client"
)

// ParamProjectID is the route parameter that selects the active project
const ParamProjectID = "projectId"

// Snapshot is an immutable copy of the server's answer to the current-session call.
// A nil User means the session is anonymous.
type Snapshot struct {
	User     *client.User
	Projects []client.Project
}

func snapshotFrom(resp *client.SessionResponse) Snapshot {
	if resp == nil {
		return Snapshot{}
	}
	var snap Snapshot
	if resp.User != nil {
		u := *resp.User
		snap.User = &u
	}
	if len(resp.Projects) > 0 {
		snap.Projects = append([]client.Project(nil), resp.Projects...)
	}
	return snap
}

// Current returns the authenticated user, if any
func (s Snapshot) Current() (client.User, bool) {
	if s.User == nil {
		return client.User{}, false
	}
	return *s.User, true
}

// IsAuth reports whether the snapshot has a user
func (s Snapshot) IsAuth() bool {
	return s.User != nil
}

// ProjectList returns a copy of the projects, never nil
func (s Snapshot) ProjectList() []client.Project {
	out := make([]client.Project, len(s.Projects))
	copy(out, s.Projects)
	return out
}

// ActiveProject returns the first project whose id equals the integer prefix of
// projectID, so "2", " 2", "+2" and "2abc" all select project 2. Empty, zero,
// negative and non-numeric ids select nothing.
func (s Snapshot) ActiveProject(projectID string) (client.Project, bool) {
	id, ok := parseProjectID(projectID)
	if !ok {
		return client.Project{}, false
	}
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return client.Project{}, false
}

// parseProjectID reads the leading base-10 integer of raw after optional
// whitespace and sign. Only positive values are ids.
func parseProjectID(raw string) (uint64, bool) {
	rest := strings.TrimLeftFunc(raw, unicode.IsSpace)
	negative := false
	if rest != "" && (rest[0] == '+' || rest[0] == '-') {
		negative = rest[0] == '-'
		rest = rest[1:]
	}

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	id, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil || id == 0 || negative {
		return 0, false
	}
	return id, true
}

// View is what observers receive after every transition
type View struct {
	State      State
	Generation uint64
	Snapshot   Snapshot
	ProjectID  string
}

// Loading reports whether a request was outstanding when the view was taken
func (v View) Loading() bool {
	return v.State == StateLoading
}

func (v View) Current() (client.User, bool) {
	return v.Snapshot.Current()
}

func (v View) IsAuth() bool {
	return v.Snapshot.IsAuth()
}

func (v View) Projects() []client.Project {
	return v.Snapshot.ProjectList()
}

func (v View) ActiveProject() (client.Project, bool) {
	return v.Snapshot.ActiveProject(v.ProjectID)
}
