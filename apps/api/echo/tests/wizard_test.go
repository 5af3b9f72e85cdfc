package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func wizardPath(state module.WizardState, action string) string {
	p := "/v1/teacher/modules/wizard"
	if action != "" {
		p += "/" + action
	}
	if q := state.Encode(); q != "" {
		p += "?" + q
	}
	return p
}

func Test_moduleApi_wizardAccess(t *testing.T) {
	db.Reset()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/teacher/modules/wizard")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("students are sent back to the landing page", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/modules/wizard", getToken(t, student))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})
}

func Test_moduleApi_wizardFlow(t *testing.T) {
	db.Reset()
	mailSvc.Clear()
	ctx := context.Background()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra I", "mat101", teacher.ID)
	token := getToken(t, teacher)

	deadline := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	draft := module.Draft{Title: "Limits", CourseID: crs.ID, Deadline: deadline}

	// a fresh session starts at the first step
	req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/modules/wizard", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp WizardResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, module.StepOverview, resp.State.Step)
	assert.Nil(t, resp.Module)
	assert.Equal(t, "/teacher/modules/wizard?step=1", resp.Location)

	// a preselected course survives the round trip
	req, rec = newAuthRequest(http.MethodGet, "/v1/teacher/modules/wizard?preselectedCourseId="+crs.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, crs.ID, resp.State.PreselectedCourseID)

	// the first step needs the module details
	req, rec = newAuthRequest(http.MethodPost, wizardPath(resp.State, "advance"), token, marchallObj(t, WizardAdvanceRequest{}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// submitting the details creates the draft and moves to Content
	req, rec = newAuthRequest(
		http.MethodPost, wizardPath(resp.State, "advance"), token,
		marchallObj(t, WizardAdvanceRequest{Draft: &draft}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Module)
	modID := resp.Module.ID
	assert.NotEmpty(t, modID)
	assert.Equal(t, module.StepContent, resp.State.Step)
	assert.Equal(t, modID, resp.State.ModuleID)
	assert.Contains(t, resp.Location, "moduleId="+modID)

	// reloading the wizard URL resumes the session
	req, rec = newAuthRequest(http.MethodGet, wizardPath(resp.State, ""), token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Module)
	assert.Equal(t, modID, resp.Module.ID)
	assert.Equal(t, module.StepContent, resp.State.Step)

	// Content to Review
	req, rec = newAuthRequest(http.MethodPost, wizardPath(resp.State, "advance"), token, marchallObj(t, WizardAdvanceRequest{}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &resp)
	assert.Equal(t, module.StepReview, resp.State.Step)

	// an empty module cannot be published
	stored, err := modRepo.GetModuleByID(ctx, modID)
	require.NoError(t, err)
	draft.Version = stored.Version
	req, rec = newAuthRequest(
		http.MethodPost, wizardPath(resp.State, "advance"), token,
		marchallObj(t, WizardAdvanceRequest{Draft: &draft}),
	)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var fldErrs map[string]string
	decodeBody(t, rec, &fldErrs)
	assert.Contains(t, fldErrs, "content")

	testutil.CreateContentItem(t, modRepo, modID, module.KindText, json.RawMessage(`{"text":"limits are fun"}`))

	// a stale version is rejected
	stale := draft
	stale.Version = stored.Version + 41
	req, rec = newAuthRequest(
		http.MethodPost, wizardPath(resp.State, "advance"), token,
		marchallObj(t, WizardAdvanceRequest{Draft: &stale}),
	)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// publishing redirects to the course page
	req, rec = newAuthRequest(
		http.MethodPost, wizardPath(resp.State, "advance"), token,
		marchallObj(t, WizardAdvanceRequest{Draft: &draft}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf("/teacher/courses/%s", crs.ID), rec.Header().Get("Location"))

	stored, err = modRepo.GetModuleByID(ctx, modID)
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)

	require.Len(t, mailSvc.SentMessages, 1)
	msg := mailSvc.SentMessages[0]
	assert.Equal(t, teacher.Email, msg.To[0].Address)
	assert.Contains(t, msg.Subject, "published")
}

func Test_moduleApi_wizardBack(t *testing.T) {
	db.Reset()
	ctx := context.Background()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra I", "mat101", teacher.ID)
	mod := testutil.CreateModule(t, modRepo, crs.ID, "Limits", time.Now().Add(72*time.Hour))
	token := getToken(t, teacher)

	// Review back to Content
	state := module.WizardState{Step: module.StepReview, ModuleID: mod.ID}
	req, rec := newAuthRequest(http.MethodPost, wizardPath(state, "back"), token, marchallObj(t, WizardBackRequest{}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp WizardBackResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, module.StepContent, resp.State.Step)
	assert.True(t, resp.Flushed)

	// leaving Content flushes the sub-editor's pending edits first
	pending := FlushRequest{
		Items: []FlushItem{{Kind: module.KindText, Payload: json.RawMessage(`{"text":"intro"}`)}},
	}
	req, rec = newAuthRequest(
		http.MethodPost, wizardPath(resp.State, "back"), token,
		marchallObj(t, WizardBackRequest{Pending: &pending}),
	)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &resp)
	assert.Equal(t, module.StepOverview, resp.State.Step)
	assert.True(t, resp.Flushed)

	items, err := modRepo.QueryContentItems(ctx, mod.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, module.KindText, items[0].Kind)
	assert.Equal(t, 1, items[0].Position)

	// there is nothing before the first step
	state = module.WizardState{Step: module.StepOverview, ModuleID: mod.ID}
	req, rec = newAuthRequest(http.MethodPost, wizardPath(state, "back"), token, marchallObj(t, WizardBackRequest{}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_moduleApi_wizardStateFromURL(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algebra I", "mat101", teacher.ID)
	mod := testutil.CreateModule(t, modRepo, crs.ID, "Limits", time.Now().Add(72*time.Hour))
	token := getToken(t, teacher)

	tests := []struct {
		name     string
		query    url.Values
		wantStep module.Step
	}{
		{name: "no params resolve to Overview", query: url.Values{}, wantStep: module.StepOverview},
		{
			name:     "a step past Overview without a module resolves to Overview",
			query:    url.Values{"step": {"2"}},
			wantStep: module.StepOverview,
		},
		{
			name:     "an out-of-range step resolves to Overview",
			query:    url.Values{"step": {"9"}, "moduleId": {mod.ID}},
			wantStep: module.StepOverview,
		},
		{
			name:     "a valid step with its module is kept",
			query:    url.Values{"step": {"3"}, "moduleId": {mod.ID}},
			wantStep: module.StepReview,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/modules/wizard?"+tt.query.Encode(), token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp WizardResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.wantStep, resp.State.Step)
		})
	}
}
