package enum

type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypeEmail       FieldType = "email"
	FieldTypeURL         FieldType = "url"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate,
		FieldTypeDatetime, FieldTypeSelect, FieldTypeMultiselect, FieldTypeEmail, FieldTypeURL:
		return true
	}
	return false
}

// HasOptions reports whether values of the type are drawn from a fixed list.
func (t FieldType) HasOptions() bool {
	return t == FieldTypeSelect || t == FieldTypeMultiselect
}
