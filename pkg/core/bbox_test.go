package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox_Contains(t *testing.T) {
	box := BoundingBox{
		Index: 7,
		Min:   NewVector3(-10, -10, 0),
		Max:   NewVector3(10, 10, 100),
	}

	tests := []struct {
		name  string
		point Vector3
		want  bool
	}{
		{"center", NewVector3(0, 0, 50), true},
		{"min corner", box.Min, true},
		{"max corner", box.Max, true},
		{"on face", NewVector3(10, 0, 50), true},
		{"outside x", NewVector3(10.0001, 0, 50), false},
		{"outside y", NewVector3(0, -11, 50), false},
		{"below", NewVector3(0, 0, -1), false},
		{"above", NewVector3(0, 0, 101), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, box.Contains(tt.point))
		})
	}
}

func TestBoundingBox_Degenerate(t *testing.T) {
	p := NewVector3(5, 5, 5)
	box := BoundingBox{Min: p, Max: p}
	assert.True(t, box.Contains(p))
	assert.False(t, box.Contains(NewVector3(5, 5, 5.5)))
}
