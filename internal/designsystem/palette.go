package designsystem

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	// sampleBox bounds the downscaled image used for sampling.
	sampleBox = 64
	// MaxPaletteColors caps the palette length.
	MaxPaletteColors = 5
	// mergeDistance is the RGB distance under which two buckets are one colour.
	mergeDistance = 48
	minAlpha      = 128

	darkLuminance   = 0.45
	vibrantSaturate = 0.35
)

type bucket struct {
	count      int
	r, g, b    int
	hex        string
	mr, mg, mb int
}

// Analysis is the result of sampling an image.
type Analysis struct {
	Palette []string
	Tags    []string
}

// Analyze downscales img, builds a 4-bit-per-channel histogram of opaque
// pixels and returns up to MaxPaletteColors hex colours, most dominant first.
// Equal counts are ordered by hex value so the output is deterministic.
func Analyze(img image.Image) Analysis {
	if img == nil {
		return Analysis{}
	}
	small := imaging.Fit(img, sampleBox, sampleBox, imaging.Box)

	buckets := map[int]*bucket{}
	var opaque int
	var lumSum, satSum float64
	pix := small.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b, a := int(pix[i]), int(pix[i+1]), int(pix[i+2]), int(pix[i+3])
		if a < minAlpha {
			continue
		}
		opaque++
		lumSum += luminance(r, g, b)
		satSum += saturation(r, g, b)

		key := (r>>4)<<8 | (g>>4)<<4 | b>>4
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.count++
		bk.r += r
		bk.g += g
		bk.b += b
	}
	if opaque == 0 {
		return Analysis{}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, bk := range buckets {
		bk.mr, bk.mg, bk.mb = bk.r/bk.count, bk.g/bk.count, bk.b/bk.count
		bk.hex = fmt.Sprintf("#%02x%02x%02x", bk.mr, bk.mg, bk.mb)
		ordered = append(ordered, bk)
	}
	sortBuckets(ordered)

	var merged []*bucket
	for _, bk := range ordered {
		absorbed := false
		for _, kept := range merged {
			if distance(kept, bk) < mergeDistance {
				kept.count += bk.count
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, bk)
		}
	}
	sortBuckets(merged)

	n := len(merged)
	if n > MaxPaletteColors {
		n = MaxPaletteColors
	}
	palette := make([]string, n)
	for i := 0; i < n; i++ {
		palette[i] = merged[i].hex
	}

	tags := make([]string, 0, 2)
	if lumSum/float64(opaque) < darkLuminance {
		tags = append(tags, "dark")
	} else {
		tags = append(tags, "light")
	}
	if satSum/float64(opaque) >= vibrantSaturate {
		tags = append(tags, "vibrant")
	} else {
		tags = append(tags, "muted")
	}
	return Analysis{Palette: palette, Tags: tags}
}

func sortBuckets(b []*bucket) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].count != b[j].count {
			return b[i].count > b[j].count
		}
		return b[i].hex < b[j].hex
	})
}

func distance(a, b *bucket) float64 {
	dr, dg, db := float64(a.mr-b.mr), float64(a.mg-b.mg), float64(a.mb-b.mb)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// luminance returns relative luminance in [0, 1].
func luminance(r, g, b int) float64 {
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 255
}

// saturation is the HSV saturation in [0, 1].
func saturation(r, g, b int) float64 {
	hi, lo := max(r, g, b), min(r, g, b)
	if hi == 0 {
		return 0
	}
	return float64(hi-lo) / float64(hi)
}
