package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/insights/core/ingest"
	"github.com/trezcool/insights/core/stats"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/tests"
)

var corpusFiles = map[string]string{
	"3월반/A학생/week1.csv": "이름,날짜,제목,점수,복습시간\n" +
		"김민수,2024-03-01,[과제] 미적분1 1단원(복습),95,10분\n" +
		"김민수,2024-03-08,미적분1 2단원,85,-\n" +
		"이영희,2024-03-02,미적분1 1단원,70,5분\n",
	"고2/B반/week1.csv": "이름,날짜,제목,점수\n박지성,2024-03-05,확통 1강,88\n",
}

type dataFixture struct {
	app          *testApp
	adminToken   string
	teacherToken string
	studentToken string
	legacy       map[string]string
}

func setupData(t *testing.T) dataFixture {
	app := setup(t)
	app.seed(t, corpusFiles)

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.kr", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.kr", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "김민수", "kimms", "", "", []string{user.RoleStudent}, true)

	return dataFixture{
		app:          app,
		adminToken:   app.token(t, admin),
		teacherToken: app.token(t, teacher),
		studentToken: app.token(t, student),
		legacy:       map[string]string{adminPasswordHeader: app.conf.AdminPassword},
	}
}

func recordNames(t *testing.T, app *testApp, tt httpTest) []string {
	t.Helper()
	rec := app.do(tt.request())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records []ingest.Record
	decode(t, rec, &records)
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return names
}

func Test_dataApi_data(t *testing.T) {
	fx := setupData(t)

	denied := []httpTest{
		{name: "Auth required", path: "/api/data", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Wrong admin password", path: "/api/data", header: map[string]string{adminPasswordHeader: "guess"},
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "Bad token", path: "/api/data", token: "not.a.jwt",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
	}
	for _, tt := range denied {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, fx.app.do(tt.request()))
		})
	}

	tests := []struct {
		name string
		tt   httpTest
		want []string
	}{
		{name: "Legacy admin password", tt: httpTest{path: "/api/data", header: fx.legacy}, want: []string{"김민수", "김민수", "이영희", "박지성"}},
		{name: "Teacher reads all", tt: httpTest{path: "/api/data", token: fx.teacherToken}, want: []string{"김민수", "김민수", "이영희", "박지성"}},
		{name: "Student reads own", tt: httpTest{path: "/api/data", token: fx.studentToken}, want: []string{"김민수", "김민수"}},
		{name: "Filter by folder", tt: httpTest{path: "/api/data?folder=" + url.QueryEscape("고2"), token: fx.teacherToken}, want: []string{"박지성"}},
		{name: "All folders", tt: httpTest{path: "/api/data?folder=" + url.QueryEscape(stats.AllValue), token: fx.adminToken}, want: []string{"김민수", "김민수", "이영희", "박지성"}},
		{name: "Date range", tt: httpTest{path: "/api/data?from=2024-03-02&to=2024-03-05", token: fx.teacherToken}, want: []string{"이영희", "박지성"}},
		{name: "No match", tt: httpTest{path: "/api/data?search=nobody", token: fx.teacherToken}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, recordNames(t, fx.app, tc.tt))
		})
	}
}

func Test_dataApi_students(t *testing.T) {
	fx := setupData(t)

	names := func(t *testing.T, token string) []string {
		rec := fx.app.do(newAuthRequest(http.MethodGet, "/api/students", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var aggs []stats.StudentAggregate
		decode(t, rec, &aggs)
		var res []string
		for _, agg := range aggs {
			res = append(res, agg.Name)
		}
		return res
	}

	// best average first
	assert.Equal(t, []string{"김민수", "박지성", "이영희"}, names(t, fx.teacherToken))
	assert.Equal(t, []string{"김민수"}, names(t, fx.studentToken))
}

func Test_dataApi_studentStats(t *testing.T) {
	fx := setupData(t)

	path := func(name string) string {
		return "/api/students/" + url.PathEscape(name) + "/stats"
	}

	tests := []httpTest{
		{name: "Auth required", path: path("김민수"), wantCode: http.StatusUnauthorized},
		{name: "Student reads own", path: path("김민수"), token: fx.studentToken, wantCode: http.StatusOK},
		{name: "Student cannot read others", path: path("이영희"), token: fx.studentToken, wantCode: http.StatusForbidden},
		{name: "Teacher reads any", path: path("이영희"), token: fx.teacherToken, wantCode: http.StatusOK},
		{name: "Legacy admin password", path: path("박지성"), header: fx.legacy, wantCode: http.StatusOK},
		{name: "Unknown student", path: path("홍길동"), token: fx.teacherToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, fx.app.do(tt.request()))
		})
	}

	rec := fx.app.do(newAuthRequest(http.MethodGet, path("김민수"), fx.studentToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StudentStatsResponse
	decode(t, rec, &resp)

	assert.Equal(t, "김민수", resp.Name)
	assert.Equal(t, "A학생", resp.ClassName)
	assert.Equal(t, "3월반", resp.Folder)
	assert.Equal(t, 2, resp.Competency.Count)
	assert.Equal(t, 90.0, resp.Competency.AvgScore)
	assert.Len(t, resp.Axes, 6)
	assert.Equal(t, []string{"미적분1"}, resp.Courses)
	assert.NotEmpty(t, resp.Comment.Status)
	assert.NotEmpty(t, resp.Comment.Habit)

	require.Len(t, resp.Trend, 2)
	assert.Equal(t, "2024-03-01", resp.Trend[0].Date) // oldest first
	assert.Equal(t, "2024-03-08", resp.Trend[1].Date)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "2024-03-08", resp.Records[0].DateStr) // newest first

	rec = fx.app.do(newAuthRequest(http.MethodGet, path("김민수")+"?limit=1", fx.studentToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Len(t, resp.Trend, 1)
	assert.Equal(t, "2024-03-08", resp.Trend[0].Date)
}

func Test_dataApi_facets(t *testing.T) {
	fx := setupData(t)

	rec := fx.app.do(newAuthRequest(http.MethodGet, "/api/facets", fx.teacherToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var facets stats.Facets
	decode(t, rec, &facets)
	assert.ElementsMatch(t, []string{"3월반", "고2"}, facets.Folders)
	assert.ElementsMatch(t, []string{"A학생", "B반"}, facets.Classes)
	assert.Contains(t, facets.Courses, "미적분1")

	rec = fx.app.do(newAuthRequest(http.MethodGet, "/api/facets", fx.studentToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &facets)
	assert.Equal(t, []string{"3월반"}, facets.Folders)
}

func Test_dataApi_status(t *testing.T) {
	fx := setupData(t)

	rec := fx.app.do(newAuthRequest(http.MethodGet, "/api/status", fx.studentToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	decode(t, rec, &status)
	assert.Equal(t, 4, status.Snapshot.RecordCount)
	assert.Equal(t, 2, status.Snapshot.FilesScanned)
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, 1, status.Scans)
}

func Test_dataApi_rescan(t *testing.T) {
	fx := setupData(t)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized},
		{name: "Admin required", token: fx.teacherToken, wantCode: http.StatusForbidden},
		{name: "Admin", token: fx.adminToken, wantCode: http.StatusAccepted},
		{name: "Legacy admin password", header: fx.legacy, wantCode: http.StatusAccepted},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/rescan"
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, fx.app.do(tt.request()))
		})
	}

	// both triggers fall within one debounce window
	assert.Eventually(t, func() bool { return fx.app.rebuilder.Scans() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func Test_dataApi_upload(t *testing.T) {
	fx := setupData(t)

	form := func(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		for name, content := range files {
			part, err := w.CreateFormFile(uploadField, name)
			require.NoError(t, err)
			_, err = part.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())
		return &body, w.FormDataContentType()
	}
	upload := func(t *testing.T, token string, files map[string]string) (int, string) {
		body, contentType := form(t, files)
		req := newAuthRequest(http.MethodPost, "/api/upload", token, body.Bytes())
		req.Header.Set("Content-Type", contentType)
		rec := fx.app.do(req)
		return rec.Code, rec.Body.String()
	}

	code, _ := upload(t, fx.teacherToken, map[string]string{"x.csv": "이름,점수\n"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := upload(t, fx.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"no files uploaded"}`, body)

	code, body = upload(t, fx.adminToken, map[string]string{"notes.txt": "hello"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"files":"no spreadsheet file could be saved"}`, body)

	code, body = upload(t, fx.adminToken, map[string]string{
		"3월반__ORD__C반__ORD__new.csv": "이름,날짜,제목,점수\n최수진,2024-03-10,미적분1 3단원,77\n",
		"notes.txt":                  "hello",
	})
	require.Equal(t, http.StatusAccepted, code, body)
	assert.JSONEq(t, `{"saved":["3월반/C반/new.csv"],"rejected":{"notes.txt":"unsupported file format"}}`, body)

	// the upload triggers a rebuild
	assert.Eventually(t, func() bool { return fx.app.store.Len() == 5 }, 2*time.Second, 10*time.Millisecond)
	recs := fx.app.store.ByName("최수진")
	require.Len(t, recs, 1)
	assert.Equal(t, "C반", recs[0].ClassName)
	assert.Equal(t, "3월반", recs[0].Folder)
}
