package domain

// ProjectInfo carries the cosmetic project metadata attached to a record.
// Lookups are best effort; an absent project degrades to an empty name.
type ProjectInfo struct {
	Name string
}
