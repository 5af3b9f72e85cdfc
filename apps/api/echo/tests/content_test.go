package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_moduleApi_content(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival", "rival@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra I", "mat101", teacher.ID)
	mod := testutil.CreateModule(t, modRepo, crs.ID, "Limits", time.Now().Add(72*time.Hour))
	token := getToken(t, teacher)
	rivalToken := getToken(t, rival)

	contentPath := "/v1/teacher/modules/" + mod.ID + "/content"

	// an unknown kind is rejected
	req, rec := newAuthRequest(
		http.MethodPost, contentPath, token,
		marchallObj(t, module.NewContentItem{Kind: "hologram", Payload: json.RawMessage(`{}`)}),
	)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an explicit null payload is not an object
	req, rec = newAuthRequest(http.MethodPost, contentPath, token, []byte(`{"kind":"text","payload":null}`))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// items append at the end of the sequence
	var items [3]module.ContentItem
	for i, kind := range []string{module.KindText, module.KindVideo, module.KindQuiz} {
		req, rec = newAuthRequest(
			http.MethodPost, contentPath, token,
			marchallObj(t, module.NewContentItem{Kind: kind, Payload: json.RawMessage(`{"v":1}`)}),
		)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec, &items[i])
		assert.Equal(t, i+1, items[i].Position)
		assert.Equal(t, kind, items[i].Kind)
	}

	// list comes back in position order
	req, rec = newAuthRequest(http.MethodGet, contentPath, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []module.ContentItem
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 3)
	for i, item := range listed {
		assert.Equal(t, i+1, item.Position)
	}

	// another teacher is sent back to the landing page
	for _, path := range []string{contentPath, "/v1/teacher/modules/" + mod.ID} {
		req, rec = newAuthRequest(http.MethodGet, path, rivalToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	}

	// partial update keeps the untouched fields
	req, rec = newAuthRequest(
		http.MethodPut, contentPath+"/"+items[0].ID, token,
		marchallObj(t, module.UpdateContentItem{Payload: json.RawMessage(`{"v":2}`)}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated module.ContentItem
	decodeBody(t, rec, &updated)
	assert.Equal(t, module.KindText, updated.Kind)
	assert.JSONEq(t, `{"v":2}`, string(updated.Payload))

	// reorder must list every item exactly once
	req, rec = newAuthRequest(
		http.MethodPost, contentPath+"/reorder", token,
		marchallObj(t, ReorderRequest{IDs: []string{items[0].ID}}),
	)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newAuthRequest(
		http.MethodPost, contentPath+"/reorder", token,
		marchallObj(t, ReorderRequest{IDs: []string{items[2].ID, items[0].ID, items[1].ID}}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 3)
	assert.Equal(t, items[2].ID, listed[0].ID)
	assert.Equal(t, items[0].ID, listed[1].ID)
	assert.Equal(t, items[1].ID, listed[2].ID)
	for i, item := range listed {
		assert.Equal(t, i+1, item.Position)
	}

	// delete closes the position gap on the next reorder
	req, rec = newAuthRequest(http.MethodDelete, contentPath+"/"+items[1].ID, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// flush applies creates, updates, deletes and the final order in one batch
	flush := FlushRequest{
		Items: []FlushItem{
			{ID: items[0].ID, Kind: module.KindText, Payload: json.RawMessage(`{"v":3}`)},
			{Kind: module.KindContext, Payload: json.RawMessage(`{"note":"new"}`)},
		},
		Deleted: []string{items[2].ID},
	}
	req, rec = newAuthRequest(http.MethodPost, contentPath+"/flush", token, marchallObj(t, flush))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 2)
	assert.Equal(t, items[0].ID, listed[0].ID)
	assert.JSONEq(t, `{"v":3}`, string(listed[0].Payload))
	assert.Equal(t, module.KindContext, listed[1].Kind)
}

func Test_moduleApi_thumbnail(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra I", "mat101", teacher.ID)
	mod := testutil.CreateModule(t, modRepo, crs.ID, "Limits", time.Now().Add(72*time.Hour))
	token := getToken(t, teacher)

	thumbPath := "/v1/teacher/modules/" + mod.ID + "/thumbnail"

	tests := []httpTest{
		{name: "color token", body: marchallObj(t, ThumbnailRequest{Thumbnail: "#1abc9c"}), wantCode: http.StatusOK, extra: "#1abc9c"},
		{name: "image URL", body: marchallObj(t, ThumbnailRequest{Thumbnail: "https://cdn.test/x.png"}), wantCode: http.StatusOK, extra: "https://cdn.test/x.png"},
		{name: "not a reference", body: marchallObj(t, ThumbnailRequest{Thumbnail: "bleen"}), wantCode: http.StatusBadRequest},
		{name: "short hex", body: marchallObj(t, ThumbnailRequest{Thumbnail: "#1ab"}), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, thumbPath, token, tt.body)
			app.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var updated module.Module
				decodeBody(t, rec, &updated)
				assert.Equal(t, tt.extra, updated.Thumbnail)
			}
		})
	}

	// multipart upload stores the file and references its URL
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not-really-a-png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, thumbPath, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated module.Module
	decodeBody(t, rec, &updated)
	assert.Equal(t, "https://cdn.test/thumbnails/"+teacher.ID+"/"+mod.ID+"/cover.png", updated.Thumbnail)
}

func Test_moduleApi_predefinedThumbnails(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	token := getToken(t, teacher)

	req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/modules/thumbnails/predefined", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refs []string
	decodeBody(t, rec, &refs)
	assert.Contains(t, refs, "#1abc9c")
	assert.GreaterOrEqual(t, len(refs), 10)
}
