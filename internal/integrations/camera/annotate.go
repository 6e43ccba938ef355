package camera

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// AnnotateFaces zeichnet Rechtecke um die erkannten Gesichter in einen
// JPEG-kodierten Frame und gibt das Ergebnis wieder JPEG-kodiert zurück.
// Wird für das gespeicherte Erkennungsbild verwendet.
func AnnotateFaces(frame []byte, boxes []image.Rectangle) ([]byte, error) {
	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	red := color.RGBA{R: 255}
	for _, box := range boxes {
		gocv.Rectangle(&mat, box, red, 4)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotated frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
