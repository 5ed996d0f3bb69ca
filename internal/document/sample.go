package document

import (
	"github.com/teeforge/customizer/internal/typeid"
)

// NewSampleDesign lays out a blank t-shirt mockup with a headline and a
// logo already placed inside the default print area.
func NewSampleDesign() *Design {
	shirt := NewObject(typeid.NewObjectID(), KindBase, 0, 0, 1000, 800)
	shirt.Src = "/mockups/tshirt-front.png"

	headline := NewObject(typeid.NewObjectID(), KindText, 500, 220, 360, 60)
	headline.OriginX, headline.OriginY = OriginCenter, OriginCenter
	headline.Text = "Your text here"
	headline.Fill = "#1a1a2e"

	logo := NewObject(typeid.NewObjectID(), KindImage, 400, 300, 200, 200)
	logo.Src = "/assets/sample-logo.png"

	return &Design{
		ID: typeid.NewDesignID(),
		Canvas: CanvasInfo{
			Width:            1000,
			Height:           800,
			DevicePixelRatio: 1,
		},
		Objects: []*Object{shirt, headline, logo},
	}
}
