package cluster

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/seantiz/clusterwork/internal/model"
)

// Discoverer reports the current cluster membership.
type Discoverer interface {
	Members(ctx context.Context) ([]model.Member, error)
}

// StaticDiscoverer serves a fixed member list.
type StaticDiscoverer struct {
	members []model.Member
}

// NewStaticDiscoverer returns a Discoverer over members.
func NewStaticDiscoverer(members []model.Member) *StaticDiscoverer {
	return &StaticDiscoverer{members: slices.Clone(members)}
}

// Members returns a copy of the configured member list.
func (s *StaticDiscoverer) Members(context.Context) ([]model.Member, error) {
	return slices.Clone(s.members), nil
}

// ParseMembers parses a comma-separated member list. Each entry is an
// address optionally followed by "#" and a "|"-separated role list, e.g.
// "10.0.0.1:7070#compute|gpu,vsock://3:7070". Entries without roles get
// defaultRole. The address doubles as the member ID.
func ParseMembers(s, defaultRole string) ([]model.Member, error) {
	var members []model.Member
	seen := make(map[string]bool)

	for entry := range strings.SplitSeq(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		addr, rolesStr, hasRoles := strings.Cut(entry, "#")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return nil, fmt.Errorf("member entry %q: empty address", entry)
		}
		if seen[addr] {
			return nil, fmt.Errorf("member %q listed twice", addr)
		}
		seen[addr] = true

		roles := splitRoles(rolesStr, "|")
		if !hasRoles || len(roles) == 0 {
			roles = []string{defaultRole}
		}

		members = append(members, model.Member{ID: addr, Addr: addr, Roles: roles})
	}

	return members, nil
}

func splitRoles(s, sep string) []string {
	var roles []string
	for r := range strings.SplitSeq(s, sep) {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
