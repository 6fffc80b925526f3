package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestBuilderCarriesMetadata(t *testing.T) {
	err := Newf("plant %d not found", 42).
		Category(CategoryNotFound).
		Component("datastore").
		Context("plant_id", 42).
		Build()

	assert.Equal(t, "plant 42 not found", err.Error())
	assert.Equal(t, CategoryNotFound, err.Category)
	assert.Equal(t, "datastore", err.GetComponent())
	assert.Equal(t, 42, err.GetContext()["plant_id"])
	assert.WithinDuration(t, time.Now(), err.GetTimestamp(), time.Second)
}

func TestUnwrapPreservesChain(t *testing.T) {
	base := NewStd("boom")
	wrapped := New(fmt.Errorf("saving instance: %w", base)).Category(CategoryDatabase).Build()

	assert.True(t, Is(wrapped, base))
	assert.Equal(t, "saving instance: boom", wrapped.Error())
}

func TestIsMatchesByCategory(t *testing.T) {
	a := Newf("one").Category(CategoryValidation).Build()
	b := Newf("two").Category(CategoryValidation).Build()
	c := Newf("three").Category(CategoryDatabase).Build()

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestDetectCategoryFromGormErrors(t *testing.T) {
	nf := New(gorm.ErrRecordNotFound).Build()
	assert.Equal(t, CategoryNotFound, nf.Category)
	assert.True(t, IsNotFound(nf))

	dup := New(gorm.ErrDuplicatedKey).Build()
	assert.Equal(t, CategoryConflict, dup.Category)
}

func TestPriorityValidation(t *testing.T) {
	err := Newf("x").Priority("bogus").Build()
	assert.Equal(t, PriorityMedium, err.GetPriority())

	err = Newf("x").Priority(PriorityCritical).Build()
	assert.Equal(t, PriorityCritical, err.GetPriority())
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	inner := ValidationError("nickname required")
	outer := fmt.Errorf("creating instance: %w", inner)

	require.True(t, IsCategory(outer, CategoryValidation))
	assert.False(t, IsCategory(outer, CategoryDatabase))
}
