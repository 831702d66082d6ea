package domain

// AdminRoster is an immutable lookup of admin chat ids per category,
// loaded once at startup and injected into the services that need it.
type AdminRoster struct {
	byCategory map[Category][]int64
	all        map[int64]struct{}
}

// NewAdminRoster copies the given rosters into an immutable structure.
func NewAdminRoster(byCategory map[Category][]int64) *AdminRoster {
	roster := &AdminRoster{
		byCategory: make(map[Category][]int64, len(byCategory)),
		all:        make(map[int64]struct{}),
	}
	for category, ids := range byCategory {
		copied := make([]int64, len(ids))
		copy(copied, ids)
		roster.byCategory[category] = copied
		for _, id := range ids {
			roster.all[id] = struct{}{}
		}
	}
	return roster
}

// ForCategory returns the admin chat ids handling the given category.
func (r *AdminRoster) ForCategory(category Category) []int64 {
	return r.byCategory[category]
}

// Contains reports whether the chat id belongs to any admin.
func (r *AdminRoster) Contains(chatID int64) bool {
	_, ok := r.all[chatID]
	return ok
}

// All returns every admin chat id, deduplicated.
func (r *AdminRoster) All() []int64 {
	ids := make([]int64, 0, len(r.all))
	for id := range r.all {
		ids = append(ids, id)
	}
	return ids
}
