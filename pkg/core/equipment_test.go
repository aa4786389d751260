package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquipmentKind_RoundTripNames(t *testing.T) {
	for k := EquipmentKind(0); k < EquipmentKindCount; k++ {
		got, err := ParseEquipmentKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestEquipmentKind_Invalid(t *testing.T) {
	k := EquipmentKindCount
	assert.False(t, k.Valid())
	assert.Equal(t, "EquipmentKind(2)", k.String())

	_, err := ParseEquipmentKind("flashbang")
	assert.Error(t, err)
}

func TestSplit_SelectsSecondaryByFlag(t *testing.T) {
	o1, o2 := NewVector3(1, 0, 0), NewVector3(2, 0, 0)
	a1, a2 := Angle3{X: 1}, Angle3{X: 2}
	l1, l2 := Angle3{Y: 1}, Angle3{Y: 2}

	s := NewSplit(FDemoNormal, o1, o2, a1, a2, l1, l2)
	assert.Equal(t, o1, s.ViewOrigin())
	assert.Equal(t, a1, s.ViewAngles())
	assert.Equal(t, l1, s.LocalViewAngles())

	s = NewSplit(FDemoUseOrigin2, o1, o2, a1, a2, l1, l2)
	assert.Equal(t, o2, s.ViewOrigin())
	assert.Equal(t, a1, s.ViewAngles())

	s = NewSplit(FDemoUseAngles2, o1, o2, a1, a2, l1, l2)
	assert.Equal(t, o1, s.ViewOrigin())
	assert.Equal(t, a2, s.ViewAngles())
	assert.Equal(t, l2, s.LocalViewAngles())
}
