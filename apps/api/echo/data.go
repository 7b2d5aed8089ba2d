package echoapi

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/ingest"
	"github.com/trezcool/insights/core/stats"
)

const (
	defaultTrendLimit = 20
	uploadField       = "files"
)

var errNoFiles = echo.NewHTTPError(http.StatusBadRequest, "no files uploaded")

type dataApi struct {
	auth      *auth
	store     *corpus.Store
	rebuilder *corpus.Rebuilder
	root      string
	logger    core.Logger
}

func registerDataAPI(g *echo.Group, jwtOrAdminPwd echo.MiddlewareFunc, a *auth, opts *Options) {
	api := dataApi{
		auth:      a,
		store:     opts.Store,
		rebuilder: opts.Rebuilder,
		root:      opts.Conf.Data.Root,
		logger:    opts.Logger,
	}
	active := activeUserMiddleware(a)

	g.GET("/data", api.data, jwtOrAdminPwd, active)
	g.GET("/students", api.students, jwtOrAdminPwd, active)
	g.GET("/students/:name/stats", api.studentStats, jwtOrAdminPwd, active)
	g.GET("/facets", api.facets, jwtOrAdminPwd, active)
	g.GET("/status", api.status, jwtOrAdminPwd, active)

	// admin endpoints
	g.POST("/rescan", api.rescan, jwtOrAdminPwd, active, adminMiddleware())
	g.POST("/upload", api.upload, jwtOrAdminPwd, active, adminMiddleware())
}

// visibleRecords returns the records the requester may read: everything for staff, their own records for students.
func (api *dataApi) visibleRecords(ctx echo.Context) ([]ingest.Record, error) {
	if isLegacyAdmin(ctx) {
		return api.store.All(), nil
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	if usr.CanReadAll() {
		return api.store.All(), nil
	}
	return api.store.ByName(usr.Name), nil
}

func bindFilter(ctx echo.Context) (stats.Filter, error) {
	var filter stats.Filter
	if err := ctx.Bind(&filter); err != nil {
		return filter, core.NewValidationError(err)
	}
	return filter, nil
}

// Handlers

func (api *dataApi) data(ctx echo.Context) error {
	records, err := api.visibleRecords(ctx)
	if err != nil {
		return err
	}
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, filter.Apply(records))
}

func (api *dataApi) students(ctx echo.Context) error {
	records, err := api.visibleRecords(ctx)
	if err != nil {
		return err
	}
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats.Students(filter.Apply(records)))
}

func (api *dataApi) studentStats(ctx echo.Context) error {
	name, err := url.PathUnescape(ctx.Param("name"))
	if err != nil {
		return errHttpNotFound
	}
	name = core.NormalizeName(name)

	if !isLegacyAdmin(ctx) {
		usr, err := api.auth.contextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !usr.CanReadAll() && !core.SameName(usr.Name, name) {
			return errHttpForbidden
		}
	}

	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	records := filter.Apply(api.store.ByName(name))
	if len(records) == 0 {
		return errHttpNotFound
	}
	stats.SortNewestFirst(records)

	limit := defaultTrendLimit
	if l, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && l >= 0 {
		limit = l
	}

	competency := stats.Compute(records)
	return ctx.JSON(http.StatusOK, StudentStatsResponse{
		Name:       name,
		ClassName:  records[0].ClassName,
		Folder:     records[0].Folder,
		Competency: competency,
		Axes:       competency.Radar.Axes(),
		Trend:      stats.Trend(records, limit),
		Comment:    stats.CommentFor(name, records),
		Courses:    stats.Courses(records),
		Records:    records,
	})
}

func (api *dataApi) facets(ctx echo.Context) error {
	records, err := api.visibleRecords(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats.FacetsOf(records))
}

func (api *dataApi) status(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, StatusResponse{
		Snapshot: api.store.Snapshot(),
		State:    api.rebuilder.State().String(),
		Scans:    api.rebuilder.Scans(),
	})
}

func (api *dataApi) rescan(ctx echo.Context) error {
	api.rebuilder.Trigger()
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "rebuild scheduled"})
}

func (api *dataApi) upload(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return errNoFiles
	}
	files := form.File[uploadField]
	if len(files) == 0 {
		return errNoFiles
	}

	res := UploadResponse{Saved: []string{}, Rejected: map[string]string{}}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrapf(err, "opening upload %q", fh.Filename)
		}
		rel, err := corpus.SaveUpload(api.root, fh.Filename, f)
		_ = f.Close()
		if err != nil {
			cause := errors.Cause(err)
			if cause == ingest.ErrUnsupportedFormat || cause == corpus.ErrInvalidUploadPath {
				res.Rejected[fh.Filename] = cause.Error()
				continue
			}
			return errors.Wrapf(err, "saving upload %q", fh.Filename)
		}
		res.Saved = append(res.Saved, rel)
	}

	if len(res.Saved) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: uploadField, Error: "no spreadsheet file could be saved"})
	}
	api.logger.Info("files uploaded", map[string]interface{}{"saved": res.Saved, "rejected": len(res.Rejected)})
	api.rebuilder.Trigger()
	return ctx.JSON(http.StatusAccepted, res)
}

type (
	StudentStatsResponse struct {
		Name       string             `json:"name"`
		ClassName  string             `json:"className"`
		Folder     string             `json:"folder"`
		Competency stats.Competency   `json:"competency"`
		Axes       []stats.Axis       `json:"axes"`
		Trend      []stats.TrendPoint `json:"trend"`
		Comment    stats.Comment      `json:"comment"`
		Courses    []string           `json:"courses"`
		Records    []ingest.Record    `json:"records"` // newest first
	}

	StatusResponse struct {
		Snapshot corpus.Snapshot `json:"snapshot"`
		State    string          `json:"state"`
		Scans    int             `json:"scans"`
	}

	UploadResponse struct {
		Saved    []string          `json:"saved"`
		Rejected map[string]string `json:"rejected"`
	}
)
