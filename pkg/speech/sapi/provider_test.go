package sapi

import (
	"testing"

	"github.com/go-ole/go-ole"
)

func TestNewProvider(t *testing.T) {
	p := NewProvider()
	if p == nil {
		t.Fatal("Expected NewProvider to return a provider")
	}
}

func TestGetVariantInt(t *testing.T) {
	p := NewProvider()

	// getVariantInt must not panic on arbitrary variants.
	v := ole.NewVariant(ole.VT_I4, 0)
	_ = p.getVariantInt(&v)

	v32 := ole.NewVariant(ole.VT_I4, 32)
	if p.getVariantInt(&v32) != 32 {
		t.Errorf("Expected 32, got %d", p.getVariantInt(&v32))
	}
}
