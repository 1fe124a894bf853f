package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
)

type mockCatalog struct {
	entity.Catalog
	Barcode *string `db:"barcode" json:"barcode,omitempty"`
	Ignored string  `db:"-" json:"ignored"`
	NoTag   string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	expectedCols := []string{"id", "deletion_mark", "version", "code", "name", "barcode"}
	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}

	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, len(expectedCols))
}

func TestStructToMap(t *testing.T) {
	barcode := "4006381333931"
	cat := mockCatalog{
		Catalog: entity.Catalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
			Code: "ITM-001",
			Name: "Espresso",
		},
		Barcode: &barcode,
		Ignored: "skip me",
		NoTag:   "skip me too",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "ITM-001", m["code"])
	assert.Equal(t, "Espresso", m["name"])
	assert.Equal(t, &barcode, m["barcode"])
	assert.NotContains(t, m, "-")
	assert.NotContains(t, m, "NoTag")
}

func TestStructToMap_Pointer(t *testing.T) {
	cat := &mockCatalog{
		Catalog: entity.NewCatalog("ITM-002", "Latte"),
	}

	m := StructToMap(cat)

	assert.Equal(t, "ITM-002", m["code"])
	assert.Equal(t, "Latte", m["name"])
}

func TestStructToMap_NotAStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("string"))
}
