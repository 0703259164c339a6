package sqlite

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// ContentDocument is the YAML layout accepted by ImportYAML.
//
//	items:
//	  - id: home
//	    name: Home
//	    fields:
//	      - {id: Related, type: multilist, value: "news|about"}
//	    children:
//	      - id: news
//	        name: News
type ContentDocument struct {
	Items []ContentItem `yaml:"items"`
}

// ContentItem is one item in a ContentDocument. Parent defaults to the
// enclosing item, or to the content root at the top level.
type ContentItem struct {
	ID        string         `yaml:"id"`
	Parent    string         `yaml:"parent,omitempty"`
	Name      string         `yaml:"name"`
	Icon      string         `yaml:"icon,omitempty"`
	SortOrder int            `yaml:"sort_order,omitempty"`
	Protected bool           `yaml:"protected,omitempty"`
	Fields    []ContentField `yaml:"fields,omitempty"`
	Children  []ContentItem  `yaml:"children,omitempty"`
}

// ContentField is a field value in a ContentItem.
type ContentField struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// ImportYAML creates every item in the document, parents before children,
// and returns the number of items created. Import stops at the first error;
// items created before it are kept.
func (b *Backend) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var doc ContentDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decoding content document: %w", err)
	}

	created := 0
	var walk func(items []ContentItem, parent string) error
	walk = func(items []ContentItem, parent string) error {
		for _, ci := range items {
			p := ci.Parent
			if p == "" {
				p = parent
			}
			item := &types.Item{
				ItemID:    ci.ID,
				ParentID:  p,
				Name:      ci.Name,
				Icon:      ci.Icon,
				SortOrder: ci.SortOrder,
				Protected: ci.Protected,
			}
			for _, f := range ci.Fields {
				item.Fields = append(item.Fields, types.Field{FieldID: f.ID, Type: f.Type, Value: f.Value})
			}
			id, err := b.CreateItem(ctx, item)
			if err != nil {
				return fmt.Errorf("importing %q: %w", ci.Name, err)
			}
			created++
			if err := walk(ci.Children, id); err != nil {
				return err
			}
		}
		return nil
	}
	err := walk(doc.Items, types.RootItemID)
	return created, err
}
