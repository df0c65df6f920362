package event

// Lineage maps an event id to the ids of the events it caused, in append order.
type Lineage map[string][]string

// BuildLineage indexes events by causation id.
func BuildLineage(events []Event) Lineage {
	l := make(Lineage)
	for _, e := range events {
		if e.CausationID == "" {
			continue
		}
		l[e.CausationID] = append(l[e.CausationID], e.ID)
	}
	return l
}

// Children returns the direct effects of id.
func (l Lineage) Children(id string) []string {
	return l[id]
}

// Descendants returns every transitive effect of id in breadth-first order.
// The root itself is excluded, and each id is visited once even if the
// causation graph contains a cycle.
func (l Lineage) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range l[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
