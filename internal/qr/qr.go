package qr

import (
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer turns a ticket code into an image the attendee can present at
// the gate.
type Renderer interface {
	TicketPNG(code string) ([]byte, error)
}

// Generator renders QR codes as PNG. Medium error correction keeps the
// code scannable from a phone screen.
type Generator struct {
	Size int
}

func NewGenerator() *Generator {
	return &Generator{Size: 256}
}

func (g *Generator) TicketPNG(code string) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}
