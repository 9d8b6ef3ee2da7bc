package backend

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// Page is a form page as stored by the backend.
type Page struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	NameAra            string `json:"name_ara"`
	Description        string `json:"description"`
	ServiceName        string `json:"service_name"`
	SequenceNumberName string `json:"sequence_number_name"`
	ActiveInd          bool   `json:"active_ind"`
}

// FieldTypeRef is the field type of a field. The backend sends either
// the type's id or its code.
type FieldTypeRef string

// UnmarshalJSON accepts a number, a string or null.
func (r *FieldTypeRef) UnmarshalJSON(b []byte) error {
	*r = FieldTypeRef(gjson.ParseBytes(b).String())
	return nil
}

// Field is a form field.
type Field struct {
	ID          int             `json:"id"`
	Name        string          `json:"_field_name"`
	DisplayName string          `json:"_field_display_name"`
	Type        FieldTypeRef    `json:"_field_type"`
	Mandatory   bool            `json:"_mandatory"`
	Hidden      bool            `json:"_is_hidden"`
	Validation  json.RawMessage `json:"validation,omitempty"`
}

// FieldType is one entry of the field type catalogue.
type FieldType struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	ActiveInd bool   `json:"active_ind"`
}

// Category groups the fields of a page.
type Category struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"all_fields"`
}

// PageWithFields is a page together with its categorised fields.
type PageWithFields struct {
	Page
	Categories []Category `json:"categories"`
}

// DesignerData is everything the designer needs to open a page.
type DesignerData struct {
	Page       PageWithFields
	FieldTypes []FieldType
}

// FieldTypeNames maps both the id and the code of every field type to
// its display name.
func FieldTypeNames(types []FieldType) map[string]string {
	names := make(map[string]string, 2*len(types))
	for _, t := range types {
		names[strconv.Itoa(t.ID)] = t.Name
		if t.Code != "" {
			names[t.Code] = t.Name
		}
	}
	return names
}
