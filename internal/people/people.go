// Package people provides the in-memory contact roster and identity
// resolution for taskdeck.
package people

// Role gates which selector a person appears in: executors can be
// assigned work, customers can raise or delegate it, universal people
// appear in both pickers.
type Role string

const (
	RoleExecutor  Role = "executor"
	RoleCustomer  Role = "customer"
	RoleUniversal Role = "universal"
)

// ValidRoles returns all valid role values.
func ValidRoles() []Role {
	return []Role{RoleExecutor, RoleCustomer, RoleUniversal}
}

// IsValidRole returns true if the role is a valid role value.
func IsValidRole(r Role) bool {
	switch r {
	case RoleExecutor, RoleCustomer, RoleUniversal:
		return true
	default:
		return false
	}
}

// Person is one entry of the contact directory.
type Person struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	Department string `json:"department,omitempty"`
	Role       Role   `json:"role,omitempty"`
}

// Roster is a read-only snapshot of the contact directory. It holds no
// state beyond the loaded entries; lookups are pure.
type Roster struct {
	people []Person
	byID   map[string]Person
}

// NewRoster builds a roster from directory entries. Later duplicates of
// an id win, matching a full-replacement directory reload.
func NewRoster(entries []Person) *Roster {
	r := &Roster{
		people: append([]Person(nil), entries...),
		byID:   make(map[string]Person, len(entries)),
	}
	for _, p := range entries {
		r.byID[p.ID] = p
	}
	return r
}

// Lookup returns the person for an id.
func (r *Roster) Lookup(id string) (Person, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// DisplayName resolves an id to a display name, preferring the name,
// then the username. Unknown ids resolve to the id itself so callers
// always have something to render.
func (r *Roster) DisplayName(id string) string {
	p, ok := r.byID[id]
	if !ok {
		return id
	}
	if p.Name != "" {
		return p.Name
	}
	if p.Username != "" {
		return p.Username
	}
	return id
}

// Assignable returns the people eligible for assignee pickers.
func (r *Roster) Assignable() []Person {
	var out []Person
	for _, p := range r.people {
		if p.Role == RoleExecutor || p.Role == RoleUniversal {
			out = append(out, p)
		}
	}
	return out
}

// Delegators returns the people eligible for from/delegated pickers.
func (r *Roster) Delegators() []Person {
	var out []Person
	for _, p := range r.people {
		if p.Role == RoleCustomer || p.Role == RoleUniversal {
			out = append(out, p)
		}
	}
	return out
}

// Departments returns the distinct departments present in the roster,
// in first-seen order.
func (r *Roster) Departments() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r.people {
		if p.Department == "" || seen[p.Department] {
			continue
		}
		seen[p.Department] = true
		out = append(out, p.Department)
	}
	return out
}
