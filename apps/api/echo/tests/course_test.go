package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_courseApi_crud(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival", "rival@test.cd", "", []string{user.RoleTeacher}, true)
	token := getToken(t, teacher)
	rivalToken := getToken(t, rival)

	// create
	req, rec := newAuthRequest(
		http.MethodPost, "/v1/teacher/courses", token,
		marchallObj(t, course.NewCourse{Title: "Algebra I", Code: "mat101"}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var crs course.Course
	decodeBody(t, rec, &crs)
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, teacher.ID, crs.TeacherID)
	assert.Equal(t, "mat101", crs.Code)

	// a title is required
	req, rec = newAuthRequest(http.MethodPost, "/v1/teacher/courses", token, marchallObj(t, course.NewCourse{Code: "mat102"}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// list only sees own courses
	testutil.CreateCourse(t, crsRepo, "Biology", "bio101", rival.ID)
	req, rec = newAuthRequest(http.MethodGet, "/v1/teacher/courses", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var courses []course.Course
	decodeBody(t, rec, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, crs.ID, courses[0].ID)

	// detail includes the course's modules
	mod := testutil.CreateModule(t, modRepo, crs.ID, "Limits", time.Now().Add(72*time.Hour))
	req, rec = newAuthRequest(http.MethodGet, "/v1/teacher/courses/"+crs.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail CourseDetailResponse
	decodeBody(t, rec, &detail)
	assert.Equal(t, crs.ID, detail.Course.ID)
	require.Len(t, detail.Modules, 1)
	assert.Equal(t, mod.ID, detail.Modules[0].ID)

	// another teacher's course sends them back to the landing page
	req, rec = newAuthRequest(http.MethodGet, "/v1/teacher/courses/"+crs.ID, rivalToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	// update
	req, rec = newAuthRequest(
		http.MethodPut, "/v1/teacher/courses/"+crs.ID, token,
		marchallObj(t, course.UpdateCourse{Title: "Algebra II"}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &crs)
	assert.Equal(t, "Algebra II", crs.Title)
	assert.Equal(t, "mat101", crs.Code)

	// only the owner can update
	req, rec = newAuthRequest(
		http.MethodPut, "/v1/teacher/courses/"+crs.ID, rivalToken,
		marchallObj(t, course.UpdateCourse{Title: "Mine now"}),
	)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	// delete
	req, rec = newAuthRequest(http.MethodDelete, "/v1/teacher/courses/"+crs.ID, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/teacher/courses/"+crs.ID, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
