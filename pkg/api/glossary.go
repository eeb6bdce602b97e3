package api

// Glossary describes one glossary activity instance.
type Glossary struct {
	ID                    int64    `json:"id"`
	CourseModuleID        int64    `json:"coursemodule"`
	CourseID              int64    `json:"course"`
	Name                  string   `json:"name"`
	Intro                 string   `json:"intro"`
	AllowDuplicateEntries bool     `json:"allowduplicateentries"`
	DefaultApproval       bool     `json:"defaultapproval"`
	BrowseModes           []string `json:"browsemodes"`
	TimeModified          int64    `json:"timemodified"`
}

// Entry is one published glossary entry as returned by the list functions.
type Entry struct {
	ID            int64  `json:"id"`
	GlossaryID    int64  `json:"glossaryid"`
	UserID        int64  `json:"userid"`
	UserFullName  string `json:"userfullname"`
	Concept       string `json:"concept"`
	Definition    string `json:"definition"`
	CategoryName  string `json:"categoryname,omitempty"`
	AttachmentURL string `json:"attachmenturl,omitempty"`
	TimeCreated   int64  `json:"timecreated"`
	TimeModified  int64  `json:"timemodified"`
	Approved      bool   `json:"approved"`
}

// Category is one glossary category.
type Category struct {
	ID         int64  `json:"id"`
	GlossaryID int64  `json:"glossaryid"`
	Name       string `json:"name"`
}

// GetGlossariesByCoursesRequest fetches the glossaries visible in courses.
type GetGlossariesByCoursesRequest struct {
	CourseIDs []int64 `json:"courseids"`
}

// GetGlossariesByCoursesResponse lists the matching glossaries.
type GetGlossariesByCoursesResponse struct {
	Glossaries []Glossary `json:"glossaries"`
	Warnings   []Warning  `json:"warnings,omitempty"`
}

// GetEntriesRequest is the shared parameter shape of the paginated
// entry-listing functions (by letter, author, category, date and search).
type GetEntriesRequest struct {
	GlossaryID int64  `json:"id"`
	Letter     string `json:"letter,omitempty"`
	CategoryID int64  `json:"categoryid,omitempty"`
	Order      string `json:"order,omitempty"`
	Sort       string `json:"sort,omitempty"`
	Query      string `json:"query,omitempty"`
	FullSearch bool   `json:"fullsearch,omitempty"`
	From       int    `json:"from"`
	Limit      int    `json:"limit"`
}

// GetEntriesResponse is one page of entries plus the total match count.
type GetEntriesResponse struct {
	Count    int       `json:"count"`
	Entries  []Entry   `json:"entries"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// GetEntryByIDRequest fetches a single entry.
type GetEntryByIDRequest struct {
	EntryID int64 `json:"id"`
}

// GetEntryByIDResponse wraps a single entry.
type GetEntryByIDResponse struct {
	Entry    Entry     `json:"entry"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// GetCategoriesRequest pages through a glossary's categories.
type GetCategoriesRequest struct {
	GlossaryID int64 `json:"id"`
	From       int   `json:"from"`
	Limit      int   `json:"limit"`
}

// GetCategoriesResponse is one page of categories plus the total count.
type GetCategoriesResponse struct {
	Count      int        `json:"count"`
	Categories []Category `json:"categories"`
	Warnings   []Warning  `json:"warnings,omitempty"`
}

// AddEntryRequest creates a new entry. Options carries the per-entry flags
// (usedynalink, casesensitive, fullmatch, categories) the form exposes.
type AddEntryRequest struct {
	GlossaryID       int64             `json:"glossaryid"`
	Concept          string            `json:"concept"`
	Definition       string            `json:"definition"`
	DefinitionFormat int               `json:"definitionformat"`
	Options          map[string]string `json:"options,omitempty"`
	AttachmentItemID int64             `json:"attachmentsid,omitempty"`
}

// AddEntryResponse returns the id assigned to the created entry.
type AddEntryResponse struct {
	EntryID  int64     `json:"entryid"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// UpdateEntryRequest replaces an existing entry's content.
type UpdateEntryRequest struct {
	EntryID          int64             `json:"entryid"`
	Concept          string            `json:"concept"`
	Definition       string            `json:"definition"`
	DefinitionFormat int               `json:"definitionformat"`
	Options          map[string]string `json:"options,omitempty"`
	AttachmentItemID int64             `json:"attachmentsid,omitempty"`
}

// UpdateEntryResponse acknowledges the update.
type UpdateEntryResponse struct {
	Result   bool      `json:"result"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// DeleteEntryRequest removes an entry.
type DeleteEntryRequest struct {
	EntryID int64 `json:"entryid"`
}

// DeleteEntryResponse acknowledges the deletion.
type DeleteEntryResponse struct {
	Result   bool      `json:"result"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ViewGlossaryRequest logs that a glossary was opened in a given browse mode.
type ViewGlossaryRequest struct {
	GlossaryID int64  `json:"id"`
	Mode       string `json:"mode"`
}

// ViewEntryRequest logs that a single entry was opened.
type ViewEntryRequest struct {
	EntryID int64 `json:"id"`
}
