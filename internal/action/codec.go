// Package action defines the closed set of replicated mutations and their
// wire codec. An Action is the unit of replication: it is validated before
// it ever reaches the state store and is never partially applied.
package action

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
)

// ErrMalformedAction is returned for unknown action types or payloads with
// missing required fields. A malformed action never mutates state.
var ErrMalformedAction = errors.New("malformed action")

// Action types.
const (
	TypeAddProduct     = "add_product"
	TypeUpdateProduct  = "update_product"
	TypeDeleteProduct  = "delete_product"
	TypeAddCategory    = "add_category"
	TypeUpdateCategory = "update_category"
	TypeDeleteCategory = "delete_category"
	TypeReplaceMembers = "replace_members"
)

// Action is a tagged variant. Exactly one payload field is set, matching Type.
type Action struct {
	Type     string          `json:"type"`
	Product  *model.Product  `json:"product,omitempty"`
	Category *model.Category `json:"category,omitempty"`
	ID       string          `json:"id,omitempty"`
	Members  []model.Member  `json:"members,omitempty"`
}

// Decode parses and validates a wire action.
func Decode(data []byte) (Action, error) {
	var act Action
	if err := json.Unmarshal(data, &act); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if err := act.Validate(); err != nil {
		return Action{}, err
	}
	return act, nil
}

// Encode serializes an action to its wire representation.
func Encode(act Action) ([]byte, error) {
	if err := act.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return data, nil
}

// Validate checks that the action carries exactly the payload its type
// requires. It rejects missing fields up front rather than letting zero
// values propagate into state.
func (a Action) Validate() error {
	switch a.Type {
	case TypeAddProduct, TypeUpdateProduct:
		if a.Product == nil {
			return fmt.Errorf("%w: %s requires a product", ErrMalformedAction, a.Type)
		}
		if a.Product.ID == "" || a.Product.Name == "" {
			return fmt.Errorf("%w: product id and name are required", ErrMalformedAction)
		}
		if a.Product.Quantity < 0 || a.Product.Cost < 0 {
			return fmt.Errorf("%w: product quantity and cost must be non-negative", ErrMalformedAction)
		}
	case TypeDeleteProduct, TypeDeleteCategory:
		if a.ID == "" {
			return fmt.Errorf("%w: %s requires an id", ErrMalformedAction, a.Type)
		}
	case TypeAddCategory, TypeUpdateCategory:
		if a.Category == nil {
			return fmt.Errorf("%w: %s requires a category", ErrMalformedAction, a.Type)
		}
		if a.Category.ID == "" || a.Category.Name == "" {
			return fmt.Errorf("%w: category id and name are required", ErrMalformedAction)
		}
	case TypeReplaceMembers:
		for _, m := range a.Members {
			if m.ID == "" || m.Name == "" {
				return fmt.Errorf("%w: member id and name are required", ErrMalformedAction)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedAction, a.Type)
	}
	return nil
}
