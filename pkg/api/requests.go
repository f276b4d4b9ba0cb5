package api

// GenerateRequest is the optional body for POST /api/projects/:id/content/generate.
type GenerateRequest struct {
	ForceRefresh  bool `json:"force_refresh"`
	RefreshBriefs bool `json:"refresh_briefs"`
}

// UpdateContentRequest carries a review edit for any subset of the four
// content fields. Absent fields are left untouched.
type UpdateContentRequest struct {
	PageTitle         *string `json:"page_title"`
	MetaDescription   *string `json:"meta_description"`
	TopDescription    *string `json:"top_description"`
	BottomDescription *string `json:"bottom_description"`
}

// updates flattens the set fields into the column map the content service
// consumes.
func (r *UpdateContentRequest) updates() map[string]string {
	u := make(map[string]string, 4)
	if r.PageTitle != nil {
		u["page_title"] = *r.PageTitle
	}
	if r.MetaDescription != nil {
		u["meta_description"] = *r.MetaDescription
	}
	if r.TopDescription != nil {
		u["top_description"] = *r.TopDescription
	}
	if r.BottomDescription != nil {
		u["bottom_description"] = *r.BottomDescription
	}
	return u
}

// UpdateLabelsRequest is the body for PUT /api/pages/:pageId/labels.
// Label count and membership are checked against the project taxonomy, so
// there is no binding constraint here.
type UpdateLabelsRequest struct {
	Labels []string `json:"labels"`
}

// UpdateKeywordsRequest is the body for PUT /api/pages/:pageId/keywords.
// The primary is required; the service rejects an empty one.
type UpdateKeywordsRequest struct {
	PrimaryKeyword    string   `json:"primary_keyword"`
	SecondaryKeywords []string `json:"secondary_keywords"`
}
