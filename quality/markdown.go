package quality

import (
	"fmt"
	"strings"

	"github.com/use-agent/mirror/models"
)

// Markdown renders the certificate as a Markdown document.
func Markdown(r *models.QualityReport) string {
	var b strings.Builder
	b.WriteString("# Quality Certification Report\n\n")
	fmt.Fprintf(&b, "## Overall Quality Score: %d/100\n\n", r.Overall)

	b.WriteString("### Breakdown\n")
	fmt.Fprintf(&b, "- **HTML Structure**: %d/100\n", r.HTML.Score)
	fmt.Fprintf(&b, "- **Stylesheets**: %d/100\n", r.CSS.Score)
	fmt.Fprintf(&b, "- **Images & Assets**: %d/100\n\n", r.Images.Score)

	b.WriteString("### Detailed Inspection\n\n")
	b.WriteString("**HTML Issues**:\n")
	writeIssues(&b, r.HTML.Issues)

	b.WriteString("\n**CSS Stats**:\n")
	fmt.Fprintf(&b, "- Total Files: %d\n", r.Stats.CSS.Total)
	fmt.Fprintf(&b, "- Broken Files: %d\n", r.Stats.CSS.Broken)
	writeIssues(&b, r.CSS.Issues)

	b.WriteString("\n**Image Optimization**:\n")
	fmt.Fprintf(&b, "- Total Images: %d\n", r.Stats.Images.Total)
	fmt.Fprintf(&b, "- Total Size: %.2f MB\n", r.Stats.Images.TotalMB)
	writeIssues(&b, r.Images.Issues)
	return b.String()
}

func writeIssues(b *strings.Builder, issues []string) {
	if len(issues) == 0 {
		b.WriteString("_No significant issues found._\n")
		return
	}
	for _, i := range issues {
		fmt.Fprintf(b, "- %s\n", i)
	}
}
