package view

// Partial is a view in which every property may be absent. Stored views,
// query strings and caller overrides are decoded into a Partial so that merging
// only replaces what a tier actually provides. Nil slices mean absent; an empty
// non-nil slice is an explicit "none".
type Partial struct {
	ID                *string  `json:"id,omitempty"`
	Title             *string  `json:"title,omitempty"`
	LegacySearchTerm  *string  `json:"_legacySearchTerm,omitempty"`
	SearchText        *string  `json:"searchText,omitempty"`
	SearchFilters     []Filter `json:"searchFilters,omitempty"`
	ContentTypeID     *string  `json:"contentTypeId,omitempty"`
	Order             *Order   `json:"order,omitempty"`
	DisplayedFieldIDs []string `json:"displayedFieldIds,omitempty"`
}

// FromView turns a complete view into a Partial where every property is present.
func FromView(v View) Partial {
	v = v.Clone()
	order := v.Order
	filters := v.SearchFilters
	if filters == nil {
		filters = []Filter{}
	}
	fields := v.DisplayedFieldIDs
	if fields == nil {
		fields = []string{}
	}
	return Partial{
		ID:                &v.ID,
		Title:             &v.Title,
		LegacySearchTerm:  &v.LegacySearchTerm,
		SearchText:        &v.SearchText,
		SearchFilters:     filters,
		ContentTypeID:     &v.ContentTypeID,
		Order:             &order,
		DisplayedFieldIDs: fields,
	}
}

// IsEmpty reports whether no property is present.
func (p Partial) IsEmpty() bool {
	return p.ID == nil &&
		p.Title == nil &&
		p.LegacySearchTerm == nil &&
		p.SearchText == nil &&
		p.SearchFilters == nil &&
		p.ContentTypeID == nil &&
		p.Order == nil &&
		p.DisplayedFieldIDs == nil
}

// Apply overlays the present properties of p onto base. Top-level properties
// replace wholesale; the order is rehydrated field by field so a layer that
// only carries order.fieldId keeps the base direction.
func (p Partial) Apply(base View) View {
	out := base.Clone()
	if p.ID != nil {
		out.ID = *p.ID
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.LegacySearchTerm != nil {
		out.LegacySearchTerm = *p.LegacySearchTerm
	}
	if p.SearchText != nil {
		out.SearchText = *p.SearchText
	}
	if p.SearchFilters != nil {
		out.SearchFilters = nonEmptyFilters(p.SearchFilters)
	}
	if p.ContentTypeID != nil {
		out.ContentTypeID = *p.ContentTypeID
	}
	if p.Order != nil {
		if p.Order.FieldID != "" {
			out.Order.FieldID = p.Order.FieldID
		}
		if p.Order.Direction != "" {
			out.Order.Direction = p.Order.Direction
		}
	}
	if p.DisplayedFieldIDs != nil {
		out.DisplayedFieldIDs = nonEmptyStrings(p.DisplayedFieldIDs)
	}
	return out
}

// Merge resolves a view from the lowest-precedence defaults and any number of
// layers; later layers win.
func Merge(defaults View, layers ...Partial) View {
	out := defaults.Clone()
	for _, layer := range layers {
		out = layer.Apply(out)
	}
	return out
}

func nonEmptyFilters(in []Filter) []Filter {
	if len(in) == 0 {
		return nil
	}
	return append([]Filter(nil), in...)
}

func nonEmptyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
