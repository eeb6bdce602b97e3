// Package api contains the wire types exchanged with the remote web-service
// endpoint. Field names and json tags follow the remote function signatures so
// the same structs can back both the client and test servers.
package api

// Warning is a non-fatal problem reported alongside an otherwise successful
// web-service response.
type Warning struct {
	Item        string `json:"item,omitempty"`
	ItemID      int64  `json:"itemid,omitempty"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}

// Exception is the error envelope the endpoint returns when a function
// executed but rejected the request (validation, permission, conflict).
type Exception struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

// ViewResponse acknowledges a course-module "viewed" event.
type ViewResponse struct {
	Status   bool      `json:"status"`
	Warnings []Warning `json:"warnings,omitempty"`
}
