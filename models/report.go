package models

// QualityReport is the immutable certificate computed over a finished job directory.
type QualityReport struct {
	Overall int           `json:"overall_score" bson:"overall_score"`
	HTML    CategoryScore `json:"html" bson:"html"`
	CSS     CategoryScore `json:"css" bson:"css"`
	Images  CategoryScore `json:"images" bson:"images"`
	Stats   QualityStats  `json:"stats" bson:"stats"`
}

// CategoryScore is one 0-100 category of the certificate.
type CategoryScore struct {
	Score  int      `json:"score" bson:"score"`
	Issues []string `json:"issues" bson:"issues"`
}

// QualityStats are the raw counts behind the category scores.
type QualityStats struct {
	Images AssetStats `json:"images" bson:"images"`
	CSS    AssetStats `json:"css" bson:"css"`
}

// AssetStats describes one asset directory.
type AssetStats struct {
	Total     int     `json:"total" bson:"total"`
	Broken    int     `json:"broken" bson:"broken"`
	Oversized int     `json:"oversized,omitempty" bson:"oversized,omitempty"`
	TotalMB   float64 `json:"total_mb" bson:"total_mb"`
}
