package models

// Kind is the role a resource plays in the page; it selects the validator,
// the optimizer and the output subdirectory.
type Kind string

// Resource kinds.
const (
	KindImage Kind = "image"
	KindCSS   Kind = "css"
	KindJS    Kind = "js"
	KindFont  Kind = "font"
	KindIcon  Kind = "icon"
)

// Kinds lists every resource kind in enumeration order.
var Kinds = []Kind{KindImage, KindCSS, KindJS, KindFont, KindIcon}

// Dir returns the output subdirectory for the kind, relative to the job root.
func (k Kind) Dir() string {
	switch k {
	case KindImage:
		return "assets/images"
	case KindFont:
		return "assets/fonts"
	case KindIcon:
		return "assets/icons"
	case KindCSS:
		return "css"
	case KindJS:
		return "js"
	default:
		return "assets"
	}
}

// DefaultExt is the extension appended to derived filenames that lack one.
func (k Kind) DefaultExt() string {
	switch k {
	case KindImage:
		return ".jpg"
	case KindFont:
		return ".woff2"
	case KindIcon:
		return ".ico"
	case KindCSS:
		return ".css"
	case KindJS:
		return ".js"
	default:
		return ""
	}
}
