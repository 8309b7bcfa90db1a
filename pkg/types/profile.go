package types

import "slices"

// Field is a free-form name/value pair of a Profile. The ID is stable across
// renames.
type Field struct {
	ID    string
	Name  string
	Value string
}

// Profile holds the descriptive data of an identity. Name and birth date
// parts are optional. Fields keep their insertion order, which is part of
// the published state.
type Profile struct {
	FirstName  *string
	MiddleName *string
	LastName   *string
	BirthDay   *int
	BirthMonth *int
	BirthYear  *int
	Avatar     *string // image ID

	fields []*Field
}

// Fields returns copies of the profile fields in order.
func (p *Profile) Fields() []Field {
	out := make([]Field, len(p.fields))
	for i, f := range p.fields {
		out[i] = *f
	}
	return out
}

// Field returns the field with the given ID.
func (p *Profile) Field(id string) (Field, bool) {
	if i := p.indexOf(id); i >= 0 {
		return *p.fields[i], true
	}
	return Field{}, false
}

// FieldByName returns the field with the given name.
func (p *Profile) FieldByName(name string) (Field, bool) {
	for _, f := range p.fields {
		if f.Name == name {
			return *f, true
		}
	}
	return Field{}, false
}

// AddField appends a new field with an empty value and a generated ID.
// Returns ErrInvalidName if name is empty and ErrDuplicateField if another
// field already uses it.
func (p *Profile) AddField(name string) (Field, error) {
	return p.AddFieldWithID(NewID(), name, "")
}

// AddFieldWithID appends a field with a caller-chosen ID.
func (p *Profile) AddFieldWithID(id, name, value string) (Field, error) {
	if id == "" {
		return Field{}, ErrInvalidID
	}
	if name == "" {
		return Field{}, ErrInvalidName
	}
	if p.indexOf(id) >= 0 {
		return Field{}, ErrDuplicateID
	}
	if _, taken := p.FieldByName(name); taken {
		return Field{}, ErrDuplicateField
	}
	f := &Field{ID: id, Name: name, Value: value}
	p.fields = append(p.fields, f)
	return *f, nil
}

// RenameField changes the name of a field. Renaming a field to its current
// name is a no-op; renaming to a name used by a sibling returns
// ErrDuplicateField.
func (p *Profile) RenameField(id, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	i := p.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	if p.fields[i].Name == name {
		return nil
	}
	if _, taken := p.FieldByName(name); taken {
		return ErrDuplicateField
	}
	p.fields[i].Name = name
	return nil
}

// SetFieldValue replaces the value of a field.
func (p *Profile) SetFieldValue(id, value string) error {
	i := p.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	p.fields[i].Value = value
	return nil
}

// RemoveField deletes a field.
func (p *Profile) RemoveField(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	p.fields = slices.Delete(p.fields, i, i+1)
	return nil
}

// MoveFieldUp swaps a field with its predecessor.
func (p *Profile) MoveFieldUp(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	if i == 0 {
		return ErrNotFirst
	}
	p.fields[i-1], p.fields[i] = p.fields[i], p.fields[i-1]
	return nil
}

// MoveFieldDown swaps a field with its successor.
func (p *Profile) MoveFieldDown(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	if i == len(p.fields)-1 {
		return ErrNotLast
	}
	p.fields[i+1], p.fields[i] = p.fields[i], p.fields[i+1]
	return nil
}

// Clone returns a deep copy.
func (p *Profile) Clone() Profile {
	c := Profile{
		FirstName:  clonePtr(p.FirstName),
		MiddleName: clonePtr(p.MiddleName),
		LastName:   clonePtr(p.LastName),
		BirthDay:   clonePtr(p.BirthDay),
		BirthMonth: clonePtr(p.BirthMonth),
		BirthYear:  clonePtr(p.BirthYear),
		Avatar:     clonePtr(p.Avatar),
	}
	for _, f := range p.fields {
		cf := *f
		c.fields = append(c.fields, &cf)
	}
	return c
}

func (p *Profile) indexOf(id string) int {
	return slices.IndexFunc(p.fields, func(f *Field) bool { return f.ID == id })
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
