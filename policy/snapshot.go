package policy

/* ==================================================================== */
/* ========================= DOMAIN SNAPSHOT ========================== */
/* ==================================================================== */

// permKey identifies a permission by its exact (resource, action) pair.
// Matching is exact string equality, no patterns.
type permKey struct {
	resource string
	action   string
}

// snapshot is one immutable in-memory index of a domain's policy. It is
// built once from a DomainPolicy and never mutated afterwards, so readers
// may traverse it without any lock.
type snapshot struct {
	roles map[string]Role

	// edges is the role graph: subject or role name -> bound role names.
	edges map[string][]string

	// grants holds the flattened permission set per role name or subject
	// (direct grants), before graph traversal.
	grants map[string]map[permKey]struct{}

	// grantList preserves the resolved Permission records for listing.
	grantList map[string][]Permission
}

func buildSnapshot(pol *DomainPolicy) *snapshot {
	s := &snapshot{
		roles:     make(map[string]Role, len(pol.Roles)),
		edges:     make(map[string][]string, len(pol.RoleEdges)),
		grants:    make(map[string]map[permKey]struct{}),
		grantList: make(map[string][]Permission),
	}
	for _, r := range pol.Roles {
		s.roles[r.Name] = r
	}
	for sub, roles := range pol.RoleEdges {
		s.edges[sub] = roles
	}
	for name, perms := range pol.RolePermissions {
		s.addGrants(name, perms)
	}
	for sub, perms := range pol.DirectGrants {
		s.addGrants(sub, perms)
	}
	return s
}

func (s *snapshot) addGrants(holder string, perms []Permission) {
	set := s.grants[holder]
	if set == nil {
		set = make(map[permKey]struct{}, len(perms))
		s.grants[holder] = set
	}
	for _, p := range perms {
		k := permKey{resource: p.Resource, action: p.Action}
		if _, dup := set[k]; dup {
			continue
		}
		set[k] = struct{}{}
		s.grantList[holder] = append(s.grantList[holder], p)
	}
}

// allowed walks the role graph breadth-first from the subject, checking the
// subject's direct grants first and then every reachable role. The visited
// set makes inheritance cycles terminate.
func (s *snapshot) allowed(subject, resource, action string) bool {
	k := permKey{resource: resource, action: action}
	if _, ok := s.grants[subject][k]; ok {
		return true
	}
	visited := map[string]struct{}{subject: {}}
	queue := append([]string(nil), s.edges[subject]...)
	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]
		if _, seen := visited[role]; seen {
			continue
		}
		visited[role] = struct{}{}
		if _, ok := s.grants[role][k]; ok {
			return true
		}
		queue = append(queue, s.edges[role]...)
	}
	return false
}

// reachableRoles returns every role reachable from the subject through the
// role graph, transitive bindings included.
func (s *snapshot) reachableRoles(subject string) []Role {
	var out []Role
	visited := map[string]struct{}{subject: {}}
	queue := append([]string(nil), s.edges[subject]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}
		if r, ok := s.roles[name]; ok {
			out = append(out, r)
		}
		queue = append(queue, s.edges[name]...)
	}
	return out
}

// effectivePermissions returns the deduplicated union of the subject's
// direct grants and every grant held by a reachable role.
func (s *snapshot) effectivePermissions(subject string) []Permission {
	seen := make(map[permKey]struct{})
	var out []Permission
	add := func(holder string) {
		for _, p := range s.grantList[holder] {
			k := permKey{resource: p.Resource, action: p.Action}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
	}
	add(subject)
	for _, r := range s.reachableRoles(subject) {
		add(r.Name)
	}
	return out
}
