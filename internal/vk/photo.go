package vk

// sizePriority orders the platform's photo size codes from largest to
// smallest known variant. Used when a photo carries no explicit
// dimensions.
var sizePriority = []string{"w", "z", "y", "r", "q", "p", "o", "x", "m", "s"}

// LargestPhoto returns the URL of the highest-resolution photo attached
// to the post, or "" when the post has no usable photo attachment.
//
// The first photo-typed attachment wins. If any of its size variants
// carry explicit dimensions the variant with the largest area is chosen;
// otherwise the size-code priority table decides, falling back to the
// last listed variant.
func LargestPhoto(p Post) string {
	for _, att := range p.Attachments {
		if att.Type != "photo" || att.Photo == nil {
			continue
		}

		sizes := att.Photo.Sizes
		if len(sizes) == 0 {
			return ""
		}

		if url := largestByArea(sizes); url != "" {
			return url
		}

		for _, code := range sizePriority {
			for _, size := range sizes {
				if size.Type == code {
					return size.URL
				}
			}
		}

		// Variants are conventionally listed smallest to largest.
		return sizes[len(sizes)-1].URL
	}

	return ""
}

func largestByArea(sizes []PhotoSize) string {
	hasDimensions := false

	for _, s := range sizes {
		if s.Width > 0 && s.Height > 0 {
			hasDimensions = true
			break
		}
	}

	if !hasDimensions {
		return ""
	}

	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}

	return best.URL
}
