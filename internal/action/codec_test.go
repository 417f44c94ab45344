package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
)

func TestDecodeRoundTrip(t *testing.T) {
	act := Action{
		Type:    TypeAddProduct,
		Product: &model.Product{ID: "p1", Name: "Milk", Quantity: 2, Unit: "l", Cost: 3.5},
	}

	data, err := Encode(act)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeAddProduct, got.Type)
	require.NotNil(t, got.Product)
	assert.Equal(t, "Milk", got.Product.Name)
	assert.Equal(t, 2.0, got.Product.Quantity)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"drop_table"}`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		act     Action
		wantErr bool
	}{
		{
			name:    "add product without payload",
			act:     Action{Type: TypeAddProduct},
			wantErr: true,
		},
		{
			name:    "add product without id",
			act:     Action{Type: TypeAddProduct, Product: &model.Product{Name: "Eggs"}},
			wantErr: true,
		},
		{
			name:    "negative quantity",
			act:     Action{Type: TypeUpdateProduct, Product: &model.Product{ID: "p1", Name: "Eggs", Quantity: -1}},
			wantErr: true,
		},
		{
			name:    "delete product without id",
			act:     Action{Type: TypeDeleteProduct},
			wantErr: true,
		},
		{
			name:    "delete product",
			act:     Action{Type: TypeDeleteProduct, ID: "p1"},
			wantErr: false,
		},
		{
			name:    "category without name",
			act:     Action{Type: TypeAddCategory, Category: &model.Category{ID: "c1"}},
			wantErr: true,
		},
		{
			name:    "update category",
			act:     Action{Type: TypeUpdateCategory, Category: &model.Category{ID: "c1", Name: "Dairy", Icon: "milk"}},
			wantErr: false,
		},
		{
			name:    "replace members with blank member",
			act:     Action{Type: TypeReplaceMembers, Members: []model.Member{{ID: "m1"}}},
			wantErr: true,
		},
		{
			name:    "replace members empty list",
			act:     Action{Type: TypeReplaceMembers},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.act.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedAction)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
