package catalog

// Project is one upstream project listed in the directory.
type Project struct {
	ID          string
	Description string
}

// Catalog is an ordered mapping of project id to description.
// The zero value is an empty catalog ready for use.
type Catalog struct {
	order []string
	desc  map[string]string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{desc: make(map[string]string)}
}

// FromProjects builds a catalog, keeping the first occurrence of each id.
func FromProjects(projects ...Project) *Catalog {
	c := New()
	for _, p := range projects {
		c.Add(p.ID, p.Description)
	}
	return c
}

// Add appends id if it is not already present. It reports whether id was new.
func (c *Catalog) Add(id, description string) bool {
	if c.desc == nil {
		c.desc = make(map[string]string)
	}
	if _, ok := c.desc[id]; ok {
		return false
	}
	c.order = append(c.order, id)
	c.desc[id] = description
	return true
}

// Len returns the number of distinct projects.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Description returns the description for id.
func (c *Catalog) Description(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	d, ok := c.desc[id]
	return d, ok
}

// IDs returns project ids in page order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Projects returns all projects in page order.
func (c *Catalog) Projects() []Project {
	if c == nil {
		return nil
	}
	out := make([]Project, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Project{ID: id, Description: c.desc[id]})
	}
	return out
}

// Filter returns a catalog restricted to ids, preserving page order.
// An empty ids list returns c unchanged.
func (c *Catalog) Filter(ids []string) *Catalog {
	if len(ids) == 0 {
		return c
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out := New()
	for _, id := range c.order {
		if _, ok := keep[id]; ok {
			out.Add(id, c.desc[id])
		}
	}
	return out
}
