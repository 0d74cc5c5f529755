// ABOUTME: Snippet entity, category constants, and snippet filter types
// ABOUTME: Snippets use store-assigned sequential integer identifiers

package model

// Snippet categories.
const (
	CategoryRecordQuery   = "gliderecord"
	CategoryClientScript  = "client_script"
	CategoryUIScript      = "ui_script"
	CategoryBusinessRule  = "business_rule"
	CategoryScriptInclude = "script_include"
	CategoryRESTAPI       = "rest_api"
	CategoryFlowDesigner  = "flow_designer"
	CategoryOther         = "other"
)

// MaxSnippetCodeSize is the byte cap on a snippet's code field.
const MaxSnippetCodeSize = 50000

// Snippet sort fields and directions.
const (
	SnippetSortTitle   = "title"
	SnippetSortCreated = "created"
	SnippetSortUpdated = "updated"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Snippet is a saved code snippet. A zero ID on save means insert; a nonzero
// ID means update in place.
type Snippet struct {
	ID          int64    `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Code        string   `json:"code"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Language    string   `json:"language,omitempty"`
	IsFavorite  bool     `json:"isFavorite"`
	Created     int64    `json:"created"` // epoch milliseconds
	Updated     int64    `json:"updated"` // refreshed on every write
}

// SnippetFilters is a conjunctive predicate bag for snippet searches.
type SnippetFilters struct {
	Tag          string `json:"tag,omitempty"`      // exact match, index-accelerated
	Category     string `json:"category,omitempty"` // exact match
	Search       string `json:"search,omitempty"`   // keyword across title/description/code/tags
	FavoriteOnly bool   `json:"favoriteOnly,omitempty"`
	SortBy       string `json:"sortBy,omitempty"`    // title|created|updated, default updated
	SortOrder    string `json:"sortOrder,omitempty"` // asc|desc, default desc
}
