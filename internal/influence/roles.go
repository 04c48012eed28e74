package influence

// Roles is the topology-only classification of influence graph nodes.
//
// A node without any edge lands in both Starting and Terminal and never in
// Intermediate. Consumers iterating the three sets independently will see
// such a node twice.
type Roles struct {
	Starting     []string
	Intermediate []string
	Terminal     []string
}

// IsStarting reports whether id has no incoming influence.
func (r Roles) IsStarting(id string) bool { return contains(r.Starting, id) }

// IsIntermediate reports whether id has both incoming and outgoing influences.
func (r Roles) IsIntermediate(id string) bool { return contains(r.Intermediate, id) }

// IsTerminal reports whether id has no outgoing influence.
func (r Roles) IsTerminal(id string) bool { return contains(r.Terminal, id) }

// InferRoles classifies every node of g as starting, intermediate or terminal
// from edge topology alone. Each returned list keeps node insertion order.
func InferRoles(g *Graph) Roles {
	nodes := g.Nodes()

	starting := make(map[string]bool, len(nodes))
	terminal := make(map[string]bool, len(nodes))
	nonStarting := make(map[string]bool)
	for _, n := range nodes {
		starting[n.ID] = true
		terminal[n.ID] = true
	}

	for _, inf := range g.Influences() {
		if starting[inf.Target] {
			delete(starting, inf.Target)
		}
		nonStarting[inf.Target] = true
		delete(terminal, inf.Source)
	}

	var roles Roles
	for _, n := range nodes {
		if starting[n.ID] {
			roles.Starting = append(roles.Starting, n.ID)
		}
		if nonStarting[n.ID] && !terminal[n.ID] {
			roles.Intermediate = append(roles.Intermediate, n.ID)
		}
		if terminal[n.ID] {
			roles.Terminal = append(roles.Terminal, n.ID)
		}
	}
	return roles
}

func contains(list []string, id string) bool {
	for _, item := range list {
		if item == id {
			return true
		}
	}
	return false
}
