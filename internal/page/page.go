// Package page implements the page-resource activity. Pages are read-only
// rendered content: the gateway caches course listings and serves them
// offline, with no mutation queue.
package page

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

// Remote function names
const (
	wsGetPages = "page_get_pages_by_courses"
	wsViewPage = "page_view_page"
)

// ErrPageNotFound is returned when no page matches the course module.
var ErrPageNotFound = errors.New("page not found")

// Service is the page remote gateway for one site.
type Service struct {
	siteID string
	ws     wsclient.Caller
	cache  *cache.Store
	logger *slog.Logger
}

// NewService creates the page gateway for one site.
func NewService(siteID string, ws wsclient.Caller, snapshots *cache.Store, logger *slog.Logger) *Service {
	return &Service{
		siteID: siteID,
		ws:     ws,
		cache:  snapshots,
		logger: logger,
	}
}

// GetPagesByCourses returns the pages visible in the given courses.
func (s *Service) GetPagesByCourses(ctx context.Context, courseIDs []int64, opts cache.ReadOptions) ([]api.Page, error) {
	ids := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	key := cache.Key("page", "courses", strings.Join(ids, ","))

	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetPagesByCoursesResponse, error) {
			var r api.GetPagesByCoursesResponse
			err := s.ws.Call(ctx, wsGetPages, api.GetPagesByCoursesRequest{CourseIDs: courseIDs}, &r)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// GetPageByCourseModule returns the page bound to one course module.
func (s *Service) GetPageByCourseModule(ctx context.Context, courseID, cmID int64, opts cache.ReadOptions) (*api.Page, error) {
	pages, err := s.GetPagesByCourses(ctx, []int64{courseID}, opts)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if pages[i].CourseModuleID == cmID {
			return &pages[i], nil
		}
	}
	return nil, ErrPageNotFound
}

// ViewPage logs that the page was opened. Write-through: the view log is
// never cached and failures are the caller's to ignore.
func (s *Service) ViewPage(ctx context.Context, pageID int64) error {
	var resp api.ViewResponse
	return s.ws.Call(ctx, wsViewPage, api.ViewPageRequest{PageID: pageID}, &resp)
}
