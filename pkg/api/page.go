package api

// Page describes one page-resource activity instance. Content is the
// rendered HTML body; pages are read-only on the client.
type Page struct {
	ID             int64  `json:"id"`
	CourseModuleID int64  `json:"coursemodule"`
	CourseID       int64  `json:"course"`
	Name           string `json:"name"`
	Intro          string `json:"intro"`
	Content        string `json:"content"`
	Revision       int64  `json:"revision"`
	TimeModified   int64  `json:"timemodified"`
}

// GetPagesByCoursesRequest fetches the pages visible in courses.
type GetPagesByCoursesRequest struct {
	CourseIDs []int64 `json:"courseids"`
}

// GetPagesByCoursesResponse lists the matching pages.
type GetPagesByCoursesResponse struct {
	Pages    []Page    `json:"pages"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ViewPageRequest logs that a page was opened.
type ViewPageRequest struct {
	PageID int64 `json:"pageid"`
}
