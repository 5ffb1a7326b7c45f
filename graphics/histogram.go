// Package graphics renders diagnostic charts as PGM images.
package graphics

import (
	"github.com/KitchenMishap/grayhuff/huffman"
	"github.com/KitchenMishap/grayhuff/pgm"
)

const barWidth = 4
const chartHeight = 256

// Histogram plots one vertical bar per symbol value, white on black,
// scaled so the most frequent symbol fills the full chart height.
func Histogram(ft *huffman.FrequencyTable) *pgm.Image {
	img := &pgm.Image{
		Width:  256 * barWidth,
		Height: chartHeight,
	}
	img.Pixels = make([]byte, img.Width*img.Height)

	peak := uint64(0)
	for v := 0; v < 256; v++ {
		if c := ft.Count(byte(v)); c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return img
	}

	for v := 0; v < 256; v++ {
		barHeight := int(ft.Count(byte(v)) * chartHeight / peak)
		for y := 0; y < barHeight; y++ {
			row := chartHeight - 1 - y
			for x := 0; x < barWidth; x++ {
				img.Pixels[row*img.Width+v*barWidth+x] = 255
			}
		}
	}
	return img
}
