package fallback

import "github.com/use-agent/mirror/models"

// Placeholder filenames, shared by every unresolved reference of a job.
const (
	PlaceholderImageName = "placeholder.svg"
	PlaceholderCSSName   = "placeholder.css"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="300" height="200" viewBox="0 0 300 200">
  <rect width="100%" height="100%" fill="#f8f9fa"/>
  <text x="50%" y="50%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" fill="#adb5bd" font-size="14">Image Unavailable</text>
</svg>
`

const placeholderCSS = `/* mirror: original stylesheet unavailable */
body { font-family: system-ui, -apple-system, sans-serif; line-height: 1.5; }
img { max-width: 100%; height: auto; background: #f0f0f0; }
`

// Placeholder returns the generated payload and filename for kind.
// Only images (including icons) and stylesheets have placeholders.
func Placeholder(kind models.Kind) (name string, payload []byte, ok bool) {
	switch kind {
	case models.KindImage, models.KindIcon:
		return PlaceholderImageName, []byte(placeholderSVG), true
	case models.KindCSS:
		return PlaceholderCSSName, []byte(placeholderCSS), true
	default:
		return "", nil, false
	}
}
