package billing

// Selection tracks which outstanding invoices are chosen for payment. Only
// invoices known at construction can be selected; paid and unknown ids are
// ignored.
type Selection struct {
	order    []Invoice
	known    map[string]struct{}
	selected map[string]struct{}
}

// NewSelection preselects every outstanding invoice.
func NewSelection(outstanding []Invoice) *Selection {
	s := NewEmptySelection(outstanding)
	for _, inv := range s.order {
		s.selected[inv.ID] = struct{}{}
	}
	return s
}

// NewEmptySelection starts with nothing selected.
func NewEmptySelection(outstanding []Invoice) *Selection {
	s := &Selection{
		known:    make(map[string]struct{}, len(outstanding)),
		selected: make(map[string]struct{}, len(outstanding)),
	}
	for _, inv := range outstanding {
		if !inv.Outstanding() {
			continue
		}
		if _, dup := s.known[inv.ID]; dup {
			continue
		}
		s.known[inv.ID] = struct{}{}
		s.order = append(s.order, inv)
	}
	return s
}

// Toggle flips one invoice and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.known[id]; !ok {
		return false
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// Select adds an invoice to the selection.
func (s *Selection) Select(id string) {
	if _, ok := s.known[id]; ok {
		s.selected[id] = struct{}{}
	}
}

// ToggleAll selects every visible invoice, or deselects them when all of
// them are already selected. Selected invoices outside visible are kept.
func (s *Selection) ToggleAll(visible []string) {
	ids := make([]string, 0, len(visible))
	allSelected := true
	for _, id := range visible {
		if _, ok := s.known[id]; !ok {
			continue
		}
		ids = append(ids, id)
		if _, ok := s.selected[id]; !ok {
			allSelected = false
		}
	}
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if allSelected {
			delete(s.selected, id)
		} else {
			s.selected[id] = struct{}{}
		}
	}
}

// AllSelected reports whether every visible outstanding invoice is selected.
func (s *Selection) AllSelected(visible []string) bool {
	found := false
	for _, id := range visible {
		if _, ok := s.known[id]; !ok {
			continue
		}
		found = true
		if _, ok := s.selected[id]; !ok {
			return false
		}
	}
	return found
}

// Selected reports whether id is selected.
func (s *Selection) Selected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Current returns the selected ids in outstanding order.
func (s *Selection) Current() []string {
	out := make([]string, 0, len(s.selected))
	for _, inv := range s.order {
		if _, ok := s.selected[inv.ID]; ok {
			out = append(out, inv.ID)
		}
	}
	return out
}

// Invoices returns the selected invoices in outstanding order.
func (s *Selection) Invoices() []Invoice {
	out := make([]Invoice, 0, len(s.selected))
	for _, inv := range s.order {
		if _, ok := s.selected[inv.ID]; ok {
			out = append(out, inv)
		}
	}
	return out
}

// Len is the number of selected invoices.
func (s *Selection) Len() int { return len(s.selected) }
