package resources

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// Identity resolves owner and group names to numeric ids.
type Identity interface {
	LookupUser(name string) (int, error)
	LookupGroup(name string) (int, error)
}

// ChownFunc applies numeric ownership to a path.
type ChownFunc func(path string, uid, gid int) error

// SystemIdentity resolves names through the host user database.
type SystemIdentity struct{}

func (SystemIdentity) LookupUser(name string) (int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup user %q: %w", name, err)
	}
	return strconv.Atoi(u.Uid)
}

func (SystemIdentity) LookupGroup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup group %q: %w", name, err)
	}
	return strconv.Atoi(g.Gid)
}

// StaticIdentity maps names from fixed tables. Unknown names are an error.
type StaticIdentity struct {
	Users  map[string]int
	Groups map[string]int
}

func (s StaticIdentity) LookupUser(name string) (int, error) {
	id, ok := s.Users[name]
	if !ok {
		return 0, fmt.Errorf("lookup user %q: %w", name, user.UnknownUserError(name))
	}
	return id, nil
}

func (s StaticIdentity) LookupGroup(name string) (int, error) {
	id, ok := s.Groups[name]
	if !ok {
		return 0, fmt.Errorf("lookup group %q: %w", name, user.UnknownGroupError(name))
	}
	return id, nil
}

// CurrentIdentity maps every name to the ids of the running process, which
// makes a tree owned by "root" writable in unprivileged environments.
func CurrentIdentity(names ...string) StaticIdentity {
	uid, gid := os.Getuid(), os.Getgid()
	id := StaticIdentity{Users: map[string]int{}, Groups: map[string]int{}}
	for _, n := range names {
		id.Users[n] = uid
		id.Groups[n] = gid
	}
	return id
}
