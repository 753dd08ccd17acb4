package qr_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"gate-ticketing/internal/qr"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47}

func TestTicketPNG(t *testing.T) {
	gen := qr.NewGenerator()

	png, err := gen.TicketPNG("2b29792f-7ddc-47c5-9a21-a79dfabe2ec9")
	assert.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngHeader))
}

func TestTicketPNGDefaultsSize(t *testing.T) {
	gen := &qr.Generator{Size: 0}

	png, err := gen.TicketPNG("2b29792f-7ddc-47c5-9a21-a79dfabe2ec9")
	assert.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestTicketPNGDiffersPerCode(t *testing.T) {
	gen := qr.NewGenerator()

	png1, err := gen.TicketPNG("code-1")
	assert.NoError(t, err)
	png2, err := gen.TicketPNG("code-2")
	assert.NoError(t, err)
	assert.NotEqual(t, png1, png2)
}
