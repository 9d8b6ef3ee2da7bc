package flowfile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ha1tch/flowdesigner/pkg/backend"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/layout"
)

// FromPage converts a backend page into a flow: a start node, one page
// node per category laid out left to right, and the category's fields
// stacked beneath it. fieldTypes maps a field's type reference to a
// display name; unknown references are kept as they are.
func FromPage(p backend.PageWithFields, fieldTypes map[string]string) (*flow.ServiceFlow, error) {
	f := &flow.ServiceFlow{
		ID:          strconv.Itoa(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Nodes:       []flow.Node{},
		Connections: []flow.Connection{},
		Metadata: map[string]any{
			"pageId": p.ID,
			"loaded": time.Now().UTC().Format(time.RFC3339),
		},
	}

	start := flow.Node{
		ID:       "start",
		Kind:     flow.KindStart,
		Label:    "Start",
		Position: geom.Pt(layout.PageStartX, layout.PageStartY),
		Data:     flow.StartData{},
	}
	if err := f.AddNode(start); err != nil {
		return nil, err
	}

	for i, cat := range p.Categories {
		x := float64(layout.CategoryX + i*layout.CategorySpacing)
		refs := make([]flow.FieldRef, 0, len(cat.Fields))
		for _, fld := range cat.Fields {
			refs = append(refs, flow.FieldRef{
				ID:          fld.ID,
				Name:        fld.Name,
				DisplayName: fld.DisplayName,
				Type:        typeName(fld.Type, fieldTypes),
				Mandatory:   fld.Mandatory,
			})
		}

		page := flow.Node{
			ID:       fmt.Sprintf("category-%d", cat.ID),
			Kind:     flow.KindPage,
			Label:    cat.Name,
			Position: layout.Clamp(geom.Pt(x, layout.CategoryY)),
			Data: flow.PageData{
				Service:    p.ServiceName,
				PageName:   p.Name,
				ActiveInd:  p.ActiveInd,
				CategoryID: cat.ID,
				Fields:     refs,
			},
		}
		if err := f.AddNode(page); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		for j, fld := range cat.Fields {
			label := fld.DisplayName
			if label == "" {
				label = fld.Name
			}
			node := flow.Node{
				ID:       fmt.Sprintf("field-%d", fld.ID),
				Kind:     flow.KindField,
				Label:    label,
				Position: layout.Clamp(geom.Pt(x, float64(layout.CategoryY+(j+1)*layout.FieldSpacing))),
				Data: flow.FieldData{
					FieldID:     fld.ID,
					FieldName:   fld.Name,
					DisplayName: fld.DisplayName,
					FieldType:   typeName(fld.Type, fieldTypes),
					Mandatory:   fld.Mandatory,
					Hidden:      fld.Hidden,
					Sequence:    j + 1,
				},
			}
			if err := f.AddNode(node); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
	}
	return f, nil
}

func typeName(ref backend.FieldTypeRef, names map[string]string) string {
	if name, ok := names[string(ref)]; ok {
		return name
	}
	return string(ref)
}
