package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/app"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	apperrors "github.com/ognjhunt/blueprintxr/internal/platform/errors"
)

func (ts *testServer) createContainer(t *testing.T, c domain.Container) domain.Container {
	t.Helper()
	created, err := ts.repo.CreateContainer(t.Context(), c)
	require.NoError(t, err)
	return created
}

// placeAnchor arms placement and places one anchor in containerID.
func (ts *testServer) placeAnchor(t *testing.T, screen, containerID string) app.PlaceResult {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/screens/"+screen+"/placement/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/screens/"+screen+"/anchors", placeRequest{ContainerID: containerID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[app.PlaceResult](t, rec)
}

func TestOpenScreen_InitializesOnDemand(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/screens", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]string](t, rec)["id"]

	rec = ts.do(t, http.MethodGet, "/screens/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "initializing", decodeBody[map[string]any](t, rec)["state"])

	rec = ts.do(t, http.MethodPost, "/screens/"+id+"/init", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ready", snap["state"])
	assert.Equal(t, "idle", snap["placement"])
}

func TestOpenScreen_Limit(t *testing.T) {
	ts := newTestServer(t, withMaxScreens(1))
	ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.TypeConflict, decodeBody[apperrors.ErrorResponse](t, rec).Type)
}

func TestInit_PermissionsDenied(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.DenyPermissions("camera")

	rec := ts.do(t, http.MethodPost, "/screens", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]string](t, rec)["id"]

	rec = ts.do(t, http.MethodPost, "/screens/"+id+"/init", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodGet, "/screens/"+id+"/state", nil)
	snap := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "error", snap["state"])
	assert.Contains(t, snap["reason"], "camera")
}

func TestScreenRoutes_UnknownOrInvalidScreen(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/screens/not-a-uuid/state", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/screens/"+uuid.NewString()+"/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/screens/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseScreen(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodDelete, "/screens/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/screens/"+id+"/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, ts.srv.screens.Len())
}

func TestPlaceAnchor_RequiresArmedPlacement(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)
	container := ts.createContainer(t, domain.Container{Name: "Kitchen"})

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/anchors", placeRequest{ContainerID: container.ID})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrPlacementNotArmed.Error(), decodeBody[apperrors.ErrorResponse](t, rec).Error)
}

func TestPlaceAnchor_MissingContainerID(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/anchors", placeRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTogglePlacement(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/placement/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"placement":"armed"}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/screens/"+id+"/placement/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"placement":"idle"}`, rec.Body.String())
}

func TestPlacePersistAndDownload(t *testing.T) {
	ts := newTestServer(t)
	container := ts.createContainer(t, domain.Container{Name: "Kitchen"})

	first := ts.openScreen(t)
	placed := ts.placeAnchor(t, first, container.ID)
	assert.NotEmpty(t, placed.AnchorData)

	rec := ts.do(t, http.MethodPost, "/screens/"+first+"/anchors/"+placed.LocalID.String()+"/persist",
		persistRequest{Name: "Fridge"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody[domain.AnchorRecord](t, rec)
	assert.Equal(t, "Fridge", saved.Name)
	assert.Equal(t, container.ID, saved.ContainerID)
	assert.Equal(t, saved.ID, saved.AnchorData)

	rec = ts.do(t, http.MethodGet, "/screens/"+first+"/persisted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), saved.AnchorData)

	rec = ts.do(t, http.MethodGet, "/containers/"+container.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{saved.ID}, decodeBody[domain.Container](t, rec).AnchorIDs)

	// A second screen resolves the saved anchor from the container.
	second := ts.openScreen(t)
	rec = ts.do(t, http.MethodPost, "/screens/"+second+"/download", downloadRequest{ContainerID: container.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[app.DownloadReport](t, rec)
	assert.Equal(t, 1, report.Requested)
	assert.Equal(t, 1, report.Resolved)
	assert.Empty(t, report.Failed)

	rec = ts.do(t, http.MethodGet, "/screens/"+second+"/state", nil)
	snap := decodeBody[app.Snapshot](t, rec)
	require.Len(t, snap.Anchors, 1)
	for _, info := range snap.Anchors {
		assert.True(t, info.IsPersisted)
		require.NotNil(t, info.PersistentID)
		assert.Equal(t, saved.AnchorData, info.PersistentID.String())
	}
}

func TestDownload_ReportsUnknownIDs(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/download", downloadRequest{AnchorIDs: []string{"missing"}})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[app.DownloadReport](t, rec)
	assert.Equal(t, 1, report.Requested)
	assert.Zero(t, report.Resolved)
	assert.Equal(t, []string{"missing"}, report.Failed)
}

func TestDownload_RequiresTarget(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/download", downloadRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnpersistAndRemoveAnchor(t *testing.T) {
	ts := newTestServer(t)
	container := ts.createContainer(t, domain.Container{Name: "Kitchen"})
	id := ts.openScreen(t)
	placed := ts.placeAnchor(t, id, container.ID)
	anchorPath := "/screens/" + id + "/anchors/" + placed.LocalID.String()

	rec := ts.do(t, http.MethodPost, anchorPath+"/unpersist", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, anchorPath+"/persist", persistRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, anchorPath+"/unpersist", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/screens/"+id+"/persisted", nil)
	assert.JSONEq(t, `{"persistent_ids":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, anchorPath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, anchorPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnchorRoutes_InvalidLocalID(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodDelete, "/screens/"+id+"/anchors/nope", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseResume(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodPost, "/screens/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AR session paused", decodeBody[app.Snapshot](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/screens/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AR session resumed", decodeBody[app.Snapshot](t, rec).Status)
}

func TestCurrentArea(t *testing.T) {
	ts := newTestServer(t)
	container := ts.createContainer(t, domain.Container{
		Name: "Kitchen",
		MarkedAreas: []domain.MarkedArea{
			{ID: "far", Name: "Pantry", Min: domain.Vec3{X: 10, Y: 10, Z: 10}, Max: domain.Vec3{X: 11, Y: 11, Z: 11}},
			{ID: "origin", Name: "Counter", Min: domain.Vec3{X: -1, Y: -1, Z: -1}, Max: domain.Vec3{X: 1, Y: 1, Z: 1}},
		},
	})
	id := ts.openScreen(t)

	rec := ts.do(t, http.MethodGet, "/screens/"+id+"/area", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/screens/"+id+"/area?container_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The user position is sampled by the tracking poll.
	assert.Eventually(t, func() bool {
		rec := ts.do(t, http.MethodGet, "/screens/"+id+"/area?container_id="+container.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		body := decodeBody[map[string]*domain.MarkedArea](t, rec)
		return body["area"] != nil && body["area"].ID == "origin"
	}, 3*time.Second, 50*time.Millisecond)
}
